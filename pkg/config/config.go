package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 配置树的一个节点，优先级：环境变量>配置文件>默认值
type Config struct {
	Ptr      reflect.Value //指向配置结构体值
	Env      any           //环境变量中的值
	File     any           //配置文件中的值
	Default  any           //默认值
	name     string        // 小写
	propsMap map[string]*Config
	props    []*Config
	tag      reflect.StructTag
}

var durationType = reflect.TypeOf(time.Duration(0))

func (config *Config) Get(key string) (v *Config) {
	if config.propsMap == nil {
		config.propsMap = make(map[string]*Config)
	}
	if v, ok := config.propsMap[key]; ok {
		return v
	}
	v = &Config{
		name: key,
	}
	config.propsMap[key] = v
	config.props = append(config.props, v)
	return v
}

func (config *Config) Has(key string) (ok bool) {
	if config.propsMap == nil {
		return false
	}
	_, ok = config.propsMap[strings.ToLower(key)]
	return ok
}

func (config *Config) GetValue() any {
	return config.Ptr.Interface()
}

// Desc 返回字段的 desc 标签
func (config *Config) Desc() string {
	return config.tag.Get("desc")
}

// Parse 第一步读取配置结构体的默认值和环境变量
func (config *Config) Parse(s any, prefix ...string) (err error) {
	var t reflect.Type
	var v reflect.Value
	if vv, ok := s.(reflect.Value); ok {
		t, v = vv.Type(), vv
	} else {
		t, v = reflect.TypeOf(s), reflect.ValueOf(s)
	}
	if t.Kind() == reflect.Pointer {
		t, v = t.Elem(), v.Elem()
	}

	config.Ptr = v
	config.Default = v.Interface()

	if l := len(prefix); l > 0 { // 读取环境变量
		name := strings.ToLower(prefix[l-1])
		if tag := config.tag.Get("default"); tag != "" {
			dv, err := config.assign(name, tag)
			if err != nil {
				return err
			}
			v.Set(dv)
			config.Default = v.Interface()
		}
		if envValue := os.Getenv(strings.Join(prefix, "_")); envValue != "" {
			ev, err := config.assign(name, envValue)
			if err != nil {
				return err
			}
			v.Set(ev)
			config.Env = v.Interface()
		}
	}

	if t.Kind() == reflect.Struct {
		for i, j := 0, t.NumField(); i < j; i++ {
			ft, fv := t.Field(i), v.Field(i)
			if !ft.IsExported() {
				continue
			}
			name := strings.ToLower(ft.Name)
			if tag := ft.Tag.Get("yaml"); tag != "" {
				if tag == "-" {
					continue
				}
				name, _, _ = strings.Cut(tag, ",")
			}
			prop := config.Get(name)
			prop.tag = ft.Tag
			if err = prop.Parse(fv, append(prefix, strings.ToUpper(ft.Name))...); err != nil {
				return
			}
		}
	}
	return
}

// ParseUserFile 第二步读取用户配置文件，环境变量优先
func (config *Config) ParseUserFile(conf map[string]any) (err error) {
	if conf == nil {
		return
	}
	config.File = conf
	for k, v := range conf {
		k = strings.ToLower(k)
		if !config.Has(k) {
			continue
		}
		if prop := config.Get(k); prop.props != nil {
			if v == nil {
				continue
			}
			sub, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("config %s: expect map, got %T", k, v)
			}
			if err = prop.ParseUserFile(sub); err != nil {
				return
			}
		} else {
			fv, err := prop.assign(k, v)
			if err != nil {
				return err
			}
			prop.File = fv.Interface()
			if prop.Env == nil {
				prop.Ptr.Set(fv)
			}
		}
	}
	return
}

func (config *Config) GetMap() map[string]any {
	m := make(map[string]any)
	for k, v := range config.propsMap {
		if v.props != nil {
			if vv := v.GetMap(); vv != nil {
				m[k] = vv
			}
		} else if v.GetValue() != nil {
			m[k] = v.GetValue()
		}
	}
	if len(m) > 0 {
		return m
	}
	return nil
}

var regexPureNumber = regexp.MustCompile(`^\d+$`)

func (config *Config) assign(k string, v any) (target reflect.Value, err error) {
	ft := config.Ptr.Type()
	source := reflect.ValueOf(v)
	switch ft {
	case durationType:
		target = reflect.New(ft).Elem()
		if !source.IsValid() || source.IsZero() {
			target.SetInt(0)
		} else if source.Type() == durationType {
			target.Set(source)
		} else {
			timeStr := fmt.Sprint(v)
			d, e := time.ParseDuration(timeStr)
			if e != nil || regexPureNumber.MatchString(timeStr) {
				return target, fmt.Errorf("invalid duration value %q for %s, please add unit (ms,s,m,h)", timeStr, k)
			}
			target.SetInt(int64(d))
		}
	default:
		if s, ok := v.(string); ok && ft.Kind() == reflect.String {
			target = reflect.New(ft).Elem()
			target.SetString(s)
			return
		}
		tmpStruct := reflect.StructOf([]reflect.StructField{
			{
				Name: strings.ToUpper(k),
				Type: ft,
				Tag:  reflect.StructTag(fmt.Sprintf(`yaml:"%s"`, k)),
			},
		})
		tmpValue := reflect.New(tmpStruct)
		if v != nil {
			var out []byte
			if vv, ok := v.(string); ok {
				out = []byte(fmt.Sprintf("%s: %s", k, vv))
			} else if out, err = yaml.Marshal(map[string]any{k: v}); err != nil {
				return
			}
			if err = yaml.Unmarshal(out, tmpValue.Interface()); err != nil {
				return target, fmt.Errorf("config %s: %w", k, err)
			}
		}
		target = tmpValue.Elem().Field(0)
	}
	return
}

// Parse 依次读取默认值、环境变量和配置内容
func Parse(target any, conf map[string]any, prefix ...string) (err error) {
	var c Config
	if err = c.Parse(target, prefix...); err != nil {
		return
	}
	return c.ParseUserFile(conf)
}

// LoadFile 读取 yaml 配置文件，文件不存在时只使用默认值
func LoadFile(path string, target any, prefix ...string) (err error) {
	var conf map[string]any
	if path != "" {
		var content []byte
		if content, err = os.ReadFile(path); err == nil {
			err = yaml.Unmarshal(content, &conf)
		} else if os.IsNotExist(err) {
			err = nil
		}
		if err != nil {
			return
		}
	}
	return Parse(target, conf, prefix...)
}

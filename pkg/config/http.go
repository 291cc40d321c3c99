package config

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

type Middleware func(string, http.Handler) http.Handler

// HTTP 指标等管理接口的监听配置
type HTTP struct {
	ListenAddr   string        `default:":9090" desc:"监听地址，为空时不监听"`
	CORS         bool          `default:"true" desc:"是否自动添加CORS头"`
	UserName     string        `desc:"基本身份认证用户名"`
	Password     string        `desc:"基本身份认证密码"`
	ReadTimeout  time.Duration `desc:"读取超时"`
	WriteTimeout time.Duration `desc:"写入超时"`
	IdleTimeout  time.Duration `desc:"空闲超时"`
	mux          *http.ServeMux
	middlewares  []Middleware
}

func (config *HTTP) AddMiddleware(middleware Middleware) {
	config.middlewares = append(config.middlewares, middleware)
}

func (config *HTTP) Handle(path string, f http.Handler) {
	if config.mux == nil {
		config.mux = http.NewServeMux()
	}
	if config.CORS {
		f = CORS(f)
	}
	if config.UserName != "" && config.Password != "" {
		f = BasicAuth(config.UserName, config.Password, f)
	}
	for _, middleware := range config.middlewares {
		f = middleware(path, f)
	}
	config.mux.Handle(path, f)
}

func (config *HTTP) GetHandler() http.Handler {
	if config.mux == nil {
		config.mux = http.NewServeMux()
	}
	return config.mux
}

// Serve 监听直到 ctx 结束
func (config *HTTP) Serve(ctx context.Context, logger *slog.Logger) error {
	server := &http.Server{
		Addr:         config.ListenAddr,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		Handler:      config.GetHandler(),
	}
	stop := context.AfterFunc(ctx, func() {
		logger.Info("http server stop")
		server.Close()
	})
	defer stop()
	logger.Info("listen http", "addr", config.ListenAddr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Cross-Origin-Resource-Policy", "cross-origin")
		header.Set("Access-Control-Allow-Headers", "Content-Type,Access-Token")
		origin := r.Header["Origin"]
		if len(origin) == 0 {
			header.Set("Access-Control-Allow-Origin", "*")
		} else {
			header.Set("Access-Control-Allow-Origin", origin[0])
		}
		if next != nil && r.Method != "OPTIONS" {
			next.ServeHTTP(w, r)
		}
	})
}

func BasicAuth(u, p string, next http.Handler) http.Handler {
	expectedUsernameHash := sha256.Sum256([]byte(u))
	expectedPasswordHash := sha256.Sum256([]byte(p))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if username, password, ok := r.BasicAuth(); ok {
			usernameHash := sha256.Sum256([]byte(username))
			passwordHash := sha256.Sum256([]byte(password))
			// 用户名和密码都要比较，避免泄露信息
			usernameMatch := subtle.ConstantTimeCompare(usernameHash[:], expectedUsernameHash[:]) == 1
			passwordMatch := subtle.ConstantTimeCompare(passwordHash[:], expectedPasswordHash[:]) == 1
			if usernameMatch && passwordMatch {
				if next != nil {
					next.ServeHTTP(w, r)
				}
				return
			}
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

package config

import "time"

type Ring struct {
	ElementSize  int    `default:"65536" desc:"单个元素的预估大小"`
	ElementCount int    `default:"32" desc:"元素数量，总容量为两者之积"`
	Name         string `default:"video" desc:"名称，只用于日志和指标"`
}

type Log struct {
	Level     string `default:"info" desc:"日志级别"`
	Path      string `desc:"日志文件存放目录，为空时只输出到控制台"`
	Size      uint64 `default:"1048576" desc:"日志文件大小，单位：字节"`
	Formatter string `default:"2006-01-02T15" desc:"日志文件名格式"`
	MaxFiles  uint64 `default:"7" desc:"最大日志文件数量"`
	JSON      string `desc:"JSON 格式日志文件，为空时不输出"`
}

type Source struct {
	Codec        string        `default:"h264" desc:"编码格式" enum:"h264:H264,h265:H265"`
	FPS          int           `default:"25" desc:"帧率"`
	GOP          int           `default:"50" desc:"关键帧间隔"`
	FrameSize    int           `default:"4096" desc:"P帧大小"`
	KeyFrameSize int           `default:"32768" desc:"I帧大小"`
	Duration     time.Duration `desc:"运行时长，0代表一直运行"`
}

type RTP struct {
	Enable      bool          `default:"true" desc:"是否启用RTP输出"`
	Addr        string        `default:"127.0.0.1:5004" desc:"UDP目标地址"`
	MTU         int           `default:"1200" desc:"最大包长"`
	PayloadType uint8         `default:"96" desc:"负载类型"`
	Interval    time.Duration `default:"5ms" desc:"无数据时的轮询间隔"`
}

type Record struct {
	Enable   bool          `desc:"是否录制"`
	FilePath string        `default:"record.h264" desc:"录制文件路径"`
	Interval time.Duration `default:"5ms" desc:"无数据时的轮询间隔"`
}

type Demo struct {
	Ring   Ring
	Log    Log
	Source Source
	RTP    RTP `yaml:"rtp"`
	Record Record
	HTTP   HTTP `yaml:"http"`
}

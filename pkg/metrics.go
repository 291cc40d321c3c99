package pkg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/mem"

	"m7s.live/framering/pkg/util"
)

var _ prometheus.Collector = (*RingCollector)(nil)

type ringDesc struct {
	Size, Capacity, Lost                 *prometheus.Desc
	Put, Drop, Reject, Evict, Corrupt    *prometheus.Desc
	Get, Pop, Free                       *prometheus.Desc
	MemoryTotal, MemoryUsed, MemoryUsage *prometheus.Desc
}

func (d *ringDesc) init(namespace string) {
	labels := []string{"ring"}
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "ring", n)
	}
	d.Size = prometheus.NewDesc(name("size_bytes"), "Bytes between read and write cursor", labels, nil)
	d.Capacity = prometheus.NewDesc(name("capacity_bytes"), "Arena capacity", labels, nil)
	d.Lost = prometheus.NewDesc(name("has_lost"), "1 when frames were lost since the flag was last cleared", labels, nil)
	d.Put = prometheus.NewDesc(name("put_total"), "Frames stored", labels, nil)
	d.Drop = prometheus.NewDesc(name("drop_total"), "Frames dropped for lack of space", labels, nil)
	d.Reject = prometheus.NewDesc(name("reject_total"), "Frames larger than the ring", labels, nil)
	d.Evict = prometheus.NewDesc(name("evict_total"), "Frames evicted for a key frame", labels, nil)
	d.Corrupt = prometheus.NewDesc(name("corrupt_total"), "Failed record validations", labels, nil)
	d.Get = prometheus.NewDesc(name("get_total"), "References taken", labels, nil)
	d.Pop = prometheus.NewDesc(name("pop_total"), "Read cursor advances", labels, nil)
	d.Free = prometheus.NewDesc(name("free_total"), "References released", labels, nil)
	d.MemoryTotal = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "memory_total"), "Memory total", nil, nil)
	d.MemoryUsed = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "memory_used"), "Memory used", nil, nil)
	d.MemoryUsage = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "memory_usage"), "Memory usage", nil, nil)
}

// RingCollector 导出一组环形缓冲区的指标
type RingCollector struct {
	Rings *util.Collection[string, *RingBuffer]
	Host  bool // 同时导出主机内存
	desc  ringDesc
}

func NewRingCollector(namespace string) (c *RingCollector) {
	c = &RingCollector{
		Rings: util.NewCollection[string, *RingBuffer](),
	}
	c.desc.init(namespace)
	return
}

func (c *RingCollector) Describe(ch chan<- *prometheus.Desc) {
	desc := &c.desc
	ch <- desc.Size
	ch <- desc.Capacity
	ch <- desc.Lost
	ch <- desc.Put
	ch <- desc.Drop
	ch <- desc.Reject
	ch <- desc.Evict
	ch <- desc.Corrupt
	ch <- desc.Get
	ch <- desc.Pop
	ch <- desc.Free
	if c.Host {
		ch <- desc.MemoryTotal
		ch <- desc.MemoryUsed
		ch <- desc.MemoryUsage
	}
}

func (c *RingCollector) Collect(ch chan<- prometheus.Metric) {
	desc := &c.desc
	c.Rings.Range(func(rb *RingBuffer) bool {
		name := rb.Name()
		stats := rb.Stats()
		var lost float64
		if rb.HasLost() {
			lost = 1
		}
		ch <- prometheus.MustNewConstMetric(desc.Size, prometheus.GaugeValue, float64(rb.Size()), name)
		ch <- prometheus.MustNewConstMetric(desc.Capacity, prometheus.GaugeValue, float64(rb.Capacity()), name)
		ch <- prometheus.MustNewConstMetric(desc.Lost, prometheus.GaugeValue, lost, name)
		ch <- prometheus.MustNewConstMetric(desc.Put, prometheus.CounterValue, float64(stats.Put), name)
		ch <- prometheus.MustNewConstMetric(desc.Drop, prometheus.CounterValue, float64(stats.Drop), name)
		ch <- prometheus.MustNewConstMetric(desc.Reject, prometheus.CounterValue, float64(stats.Reject), name)
		ch <- prometheus.MustNewConstMetric(desc.Evict, prometheus.CounterValue, float64(stats.Evict), name)
		ch <- prometheus.MustNewConstMetric(desc.Corrupt, prometheus.CounterValue, float64(stats.Corrupt), name)
		ch <- prometheus.MustNewConstMetric(desc.Get, prometheus.CounterValue, float64(stats.Get), name)
		ch <- prometheus.MustNewConstMetric(desc.Pop, prometheus.CounterValue, float64(stats.Pop), name)
		ch <- prometheus.MustNewConstMetric(desc.Free, prometheus.CounterValue, float64(stats.Free), name)
		return true
	})
	if c.Host {
		if v, err := mem.VirtualMemory(); err == nil {
			ch <- prometheus.MustNewConstMetric(desc.MemoryTotal, prometheus.GaugeValue, float64(v.Total))
			ch <- prometheus.MustNewConstMetric(desc.MemoryUsed, prometheus.GaugeValue, float64(v.Used))
			ch <- prometheus.MustNewConstMetric(desc.MemoryUsage, prometheus.GaugeValue, v.UsedPercent)
		}
	}
}

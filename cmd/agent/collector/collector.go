// Package collector reads host counters with gopsutil and packs them into
// LINUX_PERF_BLOB records.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/mdm-forwarder/model"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

const (
	totalInstance = "_Total"
	mb            = 1 << 20
)

// Collector produces one record per call. The processor counters are
// computed from the delta against the previous call, so the first record
// carries no Processor item.
type Collector struct {
	host      string
	prevTimes *cpu.TimesStat
}

func New(host string) *Collector {
	return &Collector{host: host}
}

// Collect gathers memory, processor and system counters. Sources that fail
// are skipped; an error is returned only when nothing could be read.
func (c *Collector) Collect(ctx context.Context) (model.PerfRecord, error) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	rec := model.PerfRecord{DataType: model.PerfBlobDataType}

	var lastErr error
	if item, err := c.memory(ctx, ts); err == nil {
		rec.DataItems = append(rec.DataItems, item)
	} else {
		lastErr = err
	}
	if item, ok, err := c.processor(ctx, ts); err == nil {
		if ok {
			rec.DataItems = append(rec.DataItems, item)
		}
	} else {
		lastErr = err
	}
	if item, err := c.system(ctx, ts); err == nil {
		rec.DataItems = append(rec.DataItems, item)
	} else {
		lastErr = err
	}

	if len(rec.DataItems) == 0 && lastErr != nil {
		return rec, fmt.Errorf("collect: %w", lastErr)
	}
	return rec, nil
}

func (c *Collector) item(ts, object string, counters ...model.Collection) model.DataItem {
	return model.DataItem{
		Timestamp:    ts,
		Host:         c.host,
		ObjectName:   object,
		InstanceName: totalInstance,
		Collections:  counters,
	}
}

func (c *Collector) memory(ctx context.Context, ts string) (model.DataItem, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return model.DataItem{}, err
	}
	return c.item(ts, "Memory",
		model.Collection{CounterName: "Used MBytes", Value: vm.Used / mb},
		model.Collection{CounterName: "Free MBytes", Value: vm.Free / mb},
		model.Collection{CounterName: "Available MBytes Memory", Value: vm.Available / mb},
		model.Collection{CounterName: "% Used Memory", Value: vm.UsedPercent},
	), nil
}

func (c *Collector) processor(ctx context.Context, ts string) (model.DataItem, bool, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return model.DataItem{}, false, err
	}
	if len(times) == 0 {
		return model.DataItem{}, false, nil
	}

	cur := times[0]
	prev := c.prevTimes
	c.prevTimes = &cur
	if prev == nil {
		return model.DataItem{}, false, nil
	}

	usage, ok := cpuUsage(*prev, cur)
	if !ok {
		return model.DataItem{}, false, nil
	}
	return c.item(ts, "Processor",
		model.Collection{CounterName: "% Processor Time", Value: usage.busy},
		model.Collection{CounterName: "% User Time", Value: usage.user},
		model.Collection{CounterName: "% Privileged Time", Value: usage.system},
		model.Collection{CounterName: "% IO Wait Time", Value: usage.iowait},
	), true, nil
}

func (c *Collector) system(ctx context.Context, ts string) (model.DataItem, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return model.DataItem{}, err
	}
	counters := []model.Collection{
		{CounterName: "Load Average 1 Min", Value: avg.Load1},
		{CounterName: "Load Average 5 Min", Value: avg.Load5},
		{CounterName: "Load Average 15 Min", Value: avg.Load15},
	}
	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		counters = append(counters, model.Collection{CounterName: "Uptime Seconds", Value: uptime})
	}
	return c.item(ts, "System", counters...), nil
}

type cpuPercent struct {
	busy, user, system, iowait float64
}

// cpuUsage returns percentages of the time elapsed between prev and cur.
func cpuUsage(prev, cur cpu.TimesStat) (cpuPercent, bool) {
	dUser := cur.User - prev.User
	dSystem := cur.System - prev.System
	dIdle := cur.Idle - prev.Idle
	dIowait := cur.Iowait - prev.Iowait
	dTotal := dUser + dSystem + dIdle + dIowait +
		(cur.Nice - prev.Nice) + (cur.Irq - prev.Irq) +
		(cur.Softirq - prev.Softirq) + (cur.Steal - prev.Steal)
	if dTotal <= 0 {
		return cpuPercent{}, false
	}
	return cpuPercent{
		busy:   (dTotal - dIdle - dIowait) / dTotal * 100,
		user:   dUser / dTotal * 100,
		system: dSystem / dTotal * 100,
		iowait: dIowait / dTotal * 100,
	}, true
}

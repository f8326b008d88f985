package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

type int64WithAttributes struct {
	value int64
	attrs attribute.Set
}

// Int64SyncGauge is a gauge whose values are set synchronously and reported on collection
type Int64SyncGauge struct {
	gauge         api.Int64ObservableGauge
	mutex         sync.RWMutex
	attrsValueMap map[attribute.Distinct]int64WithAttributes
}

func NewInt64SyncGauge(meter api.Meter, name string, options ...api.Int64ObservableGaugeOption) (*Int64SyncGauge, error) {
	g := &Int64SyncGauge{
		attrsValueMap: make(map[attribute.Distinct]int64WithAttributes),
	}
	callback := func(ctx context.Context, observer api.Int64Observer) error {
		g.mutex.RLock()
		defer g.mutex.RUnlock()
		for _, entry := range g.attrsValueMap {
			observer.Observe(entry.value, api.WithAttributeSet(entry.attrs))
		}
		return nil
	}
	options = append(options, api.WithInt64Callback(callback))
	gauge, err := meter.Int64ObservableGauge(name, options...)
	if err != nil {
		return nil, err
	}
	g.gauge = gauge
	return g, nil
}

// Set records the value for the given attribute set, replacing the previous one
func (g *Int64SyncGauge) Set(value int64, attr ...attribute.KeyValue) {
	attrs := attribute.NewSet(attr...)
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.attrsValueMap[attrs.Equivalent()] = int64WithAttributes{value, attrs}
}

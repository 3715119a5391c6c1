package ingest

import "github.com/cun0/vessel-notify/internal/domain"

type Route int

const (
	// RouteBroadcast: the stored record was handed straight to the hub.
	RouteBroadcast Route = iota
	// RouteScreening: the record was handed to the screening workflow, which broadcasts on completion.
	RouteScreening
	// RouteScreeningRejected: screening could not be started; the record is stored but not broadcast.
	RouteScreeningRejected
)

type Result struct {
	Notification domain.Notification
	Route        Route
}

func (r Result) ID() string { return r.Notification.ID }

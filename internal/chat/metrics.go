package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guichat_connected_sessions",
		Help: "Number of currently authenticated sessions",
	})

	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guichat_active_rooms",
		Help: "Number of rooms currently filed in the registry",
	})

	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guichat_frames_total",
		Help: "Frames processed by type and direction",
	}, []string{"type", "direction"})

	DroppedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guichat_dropped_frames_total",
		Help: "Outbound frames dropped because a client's buffer was full",
	})

	BroadcastFanout = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "guichat_broadcast_fanout",
		Help:    "Number of recipients per room broadcast",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(ConnectedSessions)
	prometheus.MustRegister(ActiveRooms)
	prometheus.MustRegister(FramesTotal)
	prometheus.MustRegister(DroppedFrames)
	prometheus.MustRegister(BroadcastFanout)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NVRsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nvr_health_nvrs_online",
		Help: "Current number of NVRs with status ok",
	})

	NVRQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nvr_health_queue_depth",
		Help: "Number of NVRs waiting for health checks",
	})

	NVRChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nvr_health_checks_total",
		Help: "Total number of NVR health checks",
	}, []string{"result", "reason"})

	OnvifFetchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "onvif_fetch_duration_seconds",
		Help:    "Duration of ONVIF profile and stream URI fetches",
		Buckets: prometheus.DefBuckets,
	})

	OnvifSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onvif_sync_total",
		Help: "Total number of ONVIF channel sync runs",
	}, []string{"result"})

	BatchSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nvr_batch_sync_total",
		Help: "Total number of operator batch sync runs",
	}, []string{"result"})

	ConfigDeploysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamtx_deploys_total",
		Help: "Total number of MediaMTX config deploys",
	}, []string{"mode", "result"})

	StreamResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_url_resolutions_total",
		Help: "Total number of camera stream URL resolutions",
	}, []string{"source"})
)

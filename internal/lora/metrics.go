package lora

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	successPct = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyclelens_lora_success_percent",
			Help: "Share of a LoRa sensor's transmissions received in the last report window.",
		},
		[]string{"dev_id"},
	)
	lowDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyclelens_lora_low_success_devices",
			Help: "Number of LoRa sensors below the low success threshold in the last report.",
		},
	)
)

func observe(devices []DeviceSummary) {
	successPct.Reset()
	low := 0
	for _, d := range devices {
		if d.SuccessPct != nil {
			successPct.WithLabelValues(d.DevID).Set(*d.SuccessPct)
		}
		if d.Low {
			low++
		}
	}
	lowDevices.Set(float64(low))
}

// Command producer publishes synthetic heat-pump telemetry to Kafka in the
// reading format the ingestor expects: {"sensor_id", "ts", "val"}.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"math"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var (
	kafkaBroker = flag.String("broker", "localhost:9092", "Kafka broker address")
	topic       = flag.String("topic", "heatpump-readings", "Kafka topic")
	interval    = flag.Duration("interval", time.Second, "Time between emitted sample sets")
	simStep     = flag.Duration("sim-step", time.Minute, "Simulated time advanced per sample set")
)

// Sensor ids, matching configs/config.dev.yaml.
const (
	sensorPower    = "phil_hp_pwr_16_pulse"
	sensorHeat     = "phil_hp_out_13_btu_heat"
	sensorFlow     = "phil_hp_out_13_btu_pulse"
	sensorEntering = "phil_hp_out_13_btu_tcold"
	sensorLeaving  = "phil_hp_out_13_btu_thot"
	sensorOutdoor  = "phil_hp_pwr_10187_temp"
)

// ReadingMessage is one sensor value as carried on the topic. A nil Val
// encodes a dropped reading.
type ReadingMessage struct {
	SensorID string   `json:"sensor_id"`
	TS       float64  `json:"ts"`
	Val      *float64 `json:"val"`
}

// heatPump is a crude on/off simulator: it runs while the house is below the
// setpoint and rests once it has overshot.
type heatPump struct {
	rng     *rand.Rand
	on      bool
	indoor  float64
	outdoor float64
}

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	sugar := logger.Sugar()

	writer := &kafka.Writer{
		Addr:     kafka.TCP(*kafkaBroker),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}
	defer func() {
		if err := writer.Close(); err != nil {
			sugar.Errorw("Error closing kafka writer", "error", err)
		}
	}()
	sugar.Infow("Starting heat pump producer", "topic", *topic, "broker", *kafkaBroker)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	hp := &heatPump{rng: rand.New(rand.NewSource(time.Now().UnixNano())), indoor: 20, outdoor: -5}
	simTime := time.Now().Add(-24 * time.Hour).Truncate(time.Minute)

	for {
		select {
		case <-ticker.C:
			msgs, err := buildMessages(hp.step(simTime, *simStep))
			if err != nil {
				sugar.Errorw("Error marshalling readings", "error", err)
				continue
			}
			if err := writer.WriteMessages(ctx, msgs...); err != nil {
				if ctx.Err() != nil {
					sugar.Info("Context cancelled, exiting message loop.")
					return
				}
				sugar.Warnw("Error writing messages", "error", err)
				continue
			}
			sugar.Debugw("Produced readings", "sim_time", simTime, "count", len(msgs), "on", hp.on)
			simTime = simTime.Add(*simStep)

		case <-ctx.Done():
			sugar.Info("Producer loop stopped.")
			return
		}
	}
}

func buildMessages(readings []ReadingMessage) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(readings))
	for _, r := range readings {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(r.SensorID), Value: b})
	}
	return msgs, nil
}

// step advances the simulation by dt and returns one reading per sensor at t.
func (hp *heatPump) step(t time.Time, dt time.Duration) []ReadingMessage {
	hours := dt.Hours()
	// Diurnal outdoor swing around -5 C.
	hp.outdoor = -5 + 6*math.Sin(2*math.Pi*float64(t.Hour())/24) + hp.rng.NormFloat64()*0.2

	switch {
	case hp.indoor < 19.5:
		hp.on = true
	case hp.indoor > 20.5:
		hp.on = false
	}

	loss := 0.15 * (hp.indoor - hp.outdoor) * hours
	var power, heat, flow float64
	if hp.on {
		power = 1800 + 40*(20-hp.outdoor) + hp.rng.NormFloat64()*50
		cop := 3.2 + 0.05*hp.outdoor + hp.rng.NormFloat64()*0.1
		heat = power * cop * 3.413 // BTU/h
		flow = 3 + hp.rng.NormFloat64()*0.1
		hp.indoor += 6 * hours
	} else {
		power = 15 + hp.rng.Float64()*10
	}
	hp.indoor -= loss

	entering := 30 + hp.rng.NormFloat64()*0.3
	leaving := entering
	if hp.on && flow > 0 {
		leaving = entering + heat/(500*flow)
	}

	ts := float64(t.UnixNano()) / float64(time.Second)
	out := []ReadingMessage{
		{SensorID: sensorPower, TS: ts, Val: ptr(power)},
		{SensorID: sensorHeat, TS: ts, Val: ptr(heat)},
		{SensorID: sensorFlow, TS: ts, Val: ptr(flow)},
		{SensorID: sensorEntering, TS: ts, Val: ptr(entering)},
		{SensorID: sensorLeaving, TS: ts, Val: ptr(leaving)},
		{SensorID: sensorOutdoor, TS: ts, Val: ptr(hp.outdoor)},
	}
	// ~3% chance the outdoor sensor drops a reading.
	if hp.rng.Float64() < 0.03 {
		out[5].Val = nil
	}
	return out
}

func ptr(v float64) *float64 {
	return &v
}

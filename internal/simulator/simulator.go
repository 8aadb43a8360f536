package simulator

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"smartchair/internal/client"
	"smartchair/internal/config"
	"smartchair/internal/models"

	"go.uber.org/zap"
)

// standUpChance 每个周期离开座椅的概率
const standUpChance = 0.05

// API 模拟器需要的服务端接口（*client.PostureClient 实现）
type API interface {
	PostReading(ctx context.Context, reading client.Reading) (models.TelemetryEntry, error)
	RaiseAlert(ctx context.Context) error
}

// Simulator 模拟座椅端：周期上报读数，坐姿时长越过阈值时触发一次告警
// 告警阈值的判断属于设备端，服务端只负责保存告警状态
type Simulator struct {
	api    API
	cfg    *config.SimulatorConfig
	rng    *rand.Rand
	logger *zap.Logger

	standUp float64
	sitting float64
	alerted bool
}

func New(api API, cfg *config.SimulatorConfig, logger *zap.Logger) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulator{
		api:     api,
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:  logger,
		standUp: standUpChance,
	}
}

// Next 生成下一条读数并推进坐姿时长
func (s *Simulator) Next() client.Reading {
	if s.sitting > 0 && s.rng.Float64() < s.standUp {
		s.sitting = 0
		s.alerted = false
	} else {
		s.sitting += s.cfg.MinutesPerTick
	}

	// 久坐后更容易出现不良坐姿
	badChance := math.Min(0.8, 0.1+0.5*s.sitting/s.cfg.AlertThreshold)
	reading := client.Reading{SittingTime: s.sitting}
	if s.rng.Float64() < badChance {
		reading.Posture = "Bad"
		reading.Distance = round1(25 + s.rng.Float64()*15)
	} else {
		reading.Posture = "Good"
		reading.Distance = round1(45 + s.rng.Float64()*20)
	}
	return reading
}

// Step 上报一条读数，必要时触发告警
func (s *Simulator) Step(ctx context.Context) error {
	reading := s.Next()
	entry, err := s.api.PostReading(ctx, reading)
	if err != nil {
		return err
	}
	s.logger.Info("Reading sent",
		zap.String("posture", entry.Posture),
		zap.Float64("distance", entry.Distance),
		zap.Float64("sitting_time", entry.SittingTime),
	)

	if s.sitting >= s.cfg.AlertThreshold && !s.alerted {
		if err := s.api.RaiseAlert(ctx); err != nil {
			return err
		}
		s.alerted = true
		s.logger.Info("Sitting time threshold reached, alert raised",
			zap.Float64("sitting_time", s.sitting),
			zap.Float64("threshold", s.cfg.AlertThreshold),
		)
	}
	return nil
}

// Run 按周期运行直到 ctx 取消或达到 Count；单次失败只记录日志
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for sent := 0; s.cfg.Count == 0 || sent < s.cfg.Count; sent++ {
		if err := s.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("Simulation step failed", zap.Error(err))
		}
		if s.cfg.Count != 0 && sent+1 == s.cfg.Count {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

package extension

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/rtm-python/est/internal/domain"
)

const (
	minutesPerDay   = 24 * 60
	readingPar      = 3
	calculationPar  = 9
	answerFormatMsg = "Answer should be in form hh:mm."
)

var clockMultiplicity = map[string]int{
	"easy":   15,
	"normal": 10,
	"hard":   5,
}

// ClockConfig is the test configuration of the clock extension.
type ClockConfig struct {
	Difficulty  string `json:"difficulty"`
	Reading     bool   `json:"reading"`
	Calculation bool   `json:"calculation"`
}

// ClockQuestion shows one time of day, or two when the difference is asked.
type ClockQuestion struct {
	From [2]int  `json:"from"`
	To   *[2]int `json:"to,omitempty"`
}

// Clock asks to read a time of day or the time elapsed between two readings.
type Clock struct {
	rnd *lockedRand
}

func NewClock(rnd *rand.Rand) *Clock {
	return &Clock{rnd: newLockedRand(rnd)}
}

func (c *Clock) Name() string { return "clock" }

func ParseClockConfig(raw []byte) (ClockConfig, error) {
	var cfg ClockConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if _, ok := clockMultiplicity[cfg.Difficulty]; !ok {
		return cfg, fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidConfig, cfg.Difficulty)
	}
	if !cfg.Reading && !cfg.Calculation {
		return cfg, fmt.Errorf("%w: no operations enabled", domain.ErrInvalidConfig)
	}
	return cfg, nil
}

func (c *Clock) Generate(config []byte) (domain.Payload, error) {
	cfg, err := ParseClockConfig(config)
	if err != nil {
		return domain.Payload{}, err
	}
	step := clockMultiplicity[cfg.Difficulty]

	calculate := cfg.Calculation
	if cfg.Reading && cfg.Calculation {
		calculate = c.rnd.between(0, 1) == 1
	}

	var (
		question ClockQuestion
		answer   int
		par      int
	)
	if calculate {
		from := roundDown(c.rnd.between(0, minutesPerDay-60), step)
		to := roundDown(c.rnd.between(from, minutesPerDay-1), step)
		question = ClockQuestion{From: hhmm(from), To: ptr(hhmm(to))}
		answer = to - from
		par = calculationPar
	} else {
		at := roundDown(c.rnd.between(0, minutesPerDay-1), step)
		question = ClockQuestion{From: hhmm(at)}
		answer = at
		par = readingPar
	}

	raw, err := json.Marshal(question)
	if err != nil {
		return domain.Payload{}, err
	}
	h := hhmm(answer)
	return domain.Payload{Question: raw, Answer: formatHHMM(h[0], h[1]), LimitTime: par}, nil
}

func (c *Clock) Validate(input Input) (string, []string) {
	hours, err := strconv.Atoi(strings.TrimSpace(input["hours"]))
	if err != nil {
		return "", []string{answerFormatMsg}
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(input["minutes"]))
	if err != nil {
		return "", []string{answerFormatMsg}
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return "", []string{answerFormatMsg}
	}
	return formatHHMM(hours, minutes), nil
}

func roundDown(minutes, step int) int {
	return minutes / step * step
}

func hhmm(minutes int) [2]int {
	return [2]int{minutes / 60, minutes % 60}
}

func formatHHMM(hours, minutes int) string {
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

func ptr[T any](v T) *T { return &v }

package extension

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/rtm-python/est/internal/domain"
)

// Seconds of par time per printed digit for each operation.
var arithmeticPace = map[string]float64{
	"addition":       1.5,
	"subtraction":    2.5,
	"multiplication": 1,
	"division":       1,
}

var arithmeticSigns = map[string]string{
	"addition":       "+",
	"subtraction":    "-",
	"multiplication": "*",
	"division":       "/",
}

// hiddenOperandFactor makes solving for an operand slightly slower than for the result.
const hiddenOperandFactor = 1.05

// ArithmeticConfig is the test configuration of the arithmetic extension.
type ArithmeticConfig struct {
	MaxLimit   int      `json:"max_limit"`
	VarsCount  int      `json:"vars_count"`
	ResultOnly bool     `json:"result_only"`
	Operations []string `json:"operations"`
}

type arithmeticQuestion struct {
	Expression string `json:"expression"`
	Operation  string `json:"operation"`
}

// Arithmetic generates chained expressions such as "12 + ? = 20".
type Arithmetic struct {
	rnd *lockedRand
}

func NewArithmetic(rnd *rand.Rand) *Arithmetic {
	return &Arithmetic{rnd: newLockedRand(rnd)}
}

func (a *Arithmetic) Name() string { return "arithmetic" }

func ParseArithmeticConfig(raw []byte) (ArithmeticConfig, error) {
	var cfg ArithmeticConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if cfg.MaxLimit < 1 {
		return cfg, fmt.Errorf("%w: max_limit must be positive", domain.ErrInvalidConfig)
	}
	if cfg.VarsCount < 2 || cfg.VarsCount > 4 {
		return cfg, fmt.Errorf("%w: vars_count must be between 2 and 4", domain.ErrInvalidConfig)
	}
	if len(cfg.Operations) == 0 {
		return cfg, fmt.Errorf("%w: no operations enabled", domain.ErrInvalidConfig)
	}
	for _, op := range cfg.Operations {
		if _, ok := arithmeticPace[op]; !ok {
			return cfg, fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidConfig, op)
		}
	}
	return cfg, nil
}

func (a *Arithmetic) Generate(config []byte) (domain.Payload, error) {
	cfg, err := ParseArithmeticConfig(config)
	if err != nil {
		return domain.Payload{}, err
	}
	op := cfg.Operations[a.rnd.between(0, len(cfg.Operations)-1)]

	values := a.chain(op, cfg.MaxLimit, cfg.VarsCount)

	digits := 0
	for _, v := range values {
		digits += len(strconv.Itoa(v))
	}
	par := float64(digits) * arithmeticPace[op]

	last := len(values) - 1
	hide := last
	if !cfg.ResultOnly {
		hide = a.rnd.between(0, last)
	}
	// A zero factor makes the missing operand ambiguous.
	if op == "multiplication" && hide != last && containsZero(values) {
		hide = last
	}
	if hide != last {
		par *= hiddenOperandFactor
	}

	answer := strconv.Itoa(values[hide])
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	parts[hide] = "?"
	expression := strings.Join(parts[:last], " "+arithmeticSigns[op]+" ") + " = " + parts[last]

	question, err := json.Marshal(arithmeticQuestion{Expression: expression, Operation: op})
	if err != nil {
		return domain.Payload{}, err
	}
	limit := int(par)
	if limit < 1 {
		limit = 1
	}
	return domain.Payload{Question: question, Answer: answer, LimitTime: limit}, nil
}

// chain returns vars operands followed by the result of applying op left to right.
func (a *Arithmetic) chain(op string, limit, vars int) []int {
	var operands []int
	var result int
	for i := 0; i < vars-1; i++ {
		switch op {
		case "addition":
			if i == 0 {
				result = a.rnd.between(0, limit)
				operands = append(operands, result)
			}
			next := a.rnd.between(0, limit-result)
			operands = append(operands, next)
			result += next
		case "subtraction":
			if i == 0 {
				result = a.rnd.between(0, limit)
				operands = append(operands, result)
			}
			next := a.rnd.between(0, result)
			operands = append(operands, next)
			result -= next
		case "multiplication":
			if i == 0 {
				result = a.rnd.between(1, limit)
				operands = append(operands, result)
			}
			next := 0
			if result > 0 {
				next = a.rnd.between(0, limit/result)
			}
			operands = append(operands, next)
			result *= next
		case "division":
			if i == 0 {
				divisor := a.rnd.between(1, limit)
				result = a.rnd.between(1, limit/divisor) * divisor
				operands = append(operands, result)
			}
			divs := divisors(result)
			next := divs[a.rnd.between(0, len(divs)-1)]
			operands = append(operands, next)
			result /= next
		}
	}
	return append(operands, result)
}

func (a *Arithmetic) Validate(input Input) (string, []string) {
	raw := strings.TrimSpace(input["answer"])
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", []string{"Answer should be a number."}
	}
	return strconv.Itoa(n), nil
}

func divisors(n int) []int {
	if n < 1 {
		return []int{1}
	}
	var out []int
	for d := 1; d <= n; d++ {
		if n%d == 0 {
			out = append(out, d)
		}
	}
	return out
}

func containsZero(values []int) bool {
	for _, v := range values {
		if v == 0 {
			return true
		}
	}
	return false
}

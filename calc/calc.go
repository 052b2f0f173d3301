// Package calc implements the calculator methods served under the "calc_"
// prefix: arithmetic, statistics, and integer functions.
//
// Domain failures use stable application codes:
//
//	-32001  division by zero, data {"b": b}
//	-32002  negative input to a root, data {"x": x}
//
// Malformed factorial input is reported as invalid params.
package calc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

// Namespace is the method name prefix.
const Namespace = "calc"

const (
	CodeDivisionByZero = -32001
	CodeDomainError    = -32002
)

// MaxFactorial bounds calc_factorial's input; the exact result of larger
// inputs is too expensive to compute per call.
const MaxFactorial = 10000

var errEmptyList = errors.New("numbers must not be empty")

// NumbersParams is the parameter list of the list-reducing methods.
type NumbersParams struct {
	Numbers []float64 `json:"numbers" summary:"list of numbers"`
}

// PairParams is the parameter list of the binary methods.
type PairParams struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// SqrtParams is the parameter list of calc_sqrt.
type SqrtParams struct {
	X float64 `json:"x" summary:"non-negative radicand"`
}

// FactorialParams is the parameter list of calc_factorial.
type FactorialParams struct {
	N Integer `json:"n" summary:"non-negative integer"`
}

// Integer holds a JSON number undecoded, so that 5 and 5.0 can be told apart.
type Integer []byte

func (i *Integer) UnmarshalJSON(b []byte) error {
	*i = append((*i)[:0], b...)
	return nil
}

func (Integer) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer"}
}

func Add(_ context.Context, p NumbersParams) (float64, error) {
	var total float64
	for _, n := range p.Numbers {
		total += n
	}
	return total, nil
}

func Subtract(_ context.Context, p PairParams) (float64, error) {
	return p.A - p.B, nil
}

// Multiply returns the product of the numbers; an empty list yields 1.
func Multiply(_ context.Context, p NumbersParams) (float64, error) {
	product := 1.0
	for _, n := range p.Numbers {
		product *= n
	}
	return product, nil
}

func Divide(_ context.Context, p PairParams) (float64, error) {
	if p.B == 0 {
		return 0, jsonrpc.NewErrorWithData(CodeDivisionByZero, "Division by zero", map[string]float64{"b": p.B})
	}
	return p.A / p.B, nil
}

func Pow(_ context.Context, p PairParams) (float64, error) {
	return math.Pow(p.A, p.B), nil
}

func Sqrt(_ context.Context, p SqrtParams) (float64, error) {
	if p.X < 0 {
		return 0, jsonrpc.NewErrorWithData(CodeDomainError, "Domain error: negative input", map[string]float64{"x": p.X})
	}
	return math.Sqrt(p.X), nil
}

// Mean fails on an empty list; the failure is reported as an internal error.
func Mean(_ context.Context, p NumbersParams) (float64, error) {
	if len(p.Numbers) == 0 {
		return 0, errEmptyList
	}
	var total float64
	for _, n := range p.Numbers {
		total += n
	}
	return total / float64(len(p.Numbers)), nil
}

// Median fails on an empty list; the failure is reported as an internal error.
func Median(_ context.Context, p NumbersParams) (float64, error) {
	n := len(p.Numbers)
	if n == 0 {
		return 0, errEmptyList
	}
	sorted := append([]float64(nil), p.Numbers...)
	sort.Float64s(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid], nil
	}
	return (sorted[mid-1] + sorted[mid]) / 2, nil
}

// Factorial returns n! exactly. n must be a non-negative integer literal;
// 5.0 and "5" are rejected.
func Factorial(_ context.Context, p FactorialParams) (*big.Int, error) {
	n, ok := parseNonNegativeInt(p.N)
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Invalid params: n must be a non-negative integer")
	}
	if n > MaxFactorial {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("Invalid params: n must be at most %d", MaxFactorial))
	}
	result := big.NewInt(1)
	if n > 1 {
		result.MulRange(2, n)
	}
	return result, nil
}

func parseNonNegativeInt(raw Integer) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || !strings.ContainsAny(s[:1], "-0123456789") || strings.ContainsAny(s, ".eE") {
		return 0, false
	}
	var num json.Number
	if err := json.Unmarshal([]byte(s), &num); err != nil {
		return 0, false
	}
	n, err := num.Int64()
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// GCD truncates a and b toward zero and returns their greatest common
// divisor. GCD(0, 0) is 0.
func GCD(_ context.Context, p PairParams) (int64, error) {
	a, b, err := integers(p)
	if err != nil {
		return 0, err
	}
	return gcd(a, b), nil
}

// LCM truncates a and b toward zero and returns their least common multiple.
// It is 0 when either is 0.
func LCM(_ context.Context, p PairParams) (int64, error) {
	a, b, err := integers(p)
	if err != nil {
		return 0, err
	}
	if a == 0 || b == 0 {
		return 0, nil
	}
	l := new(big.Int).Mul(big.NewInt(abs(a)/gcd(a, b)), big.NewInt(abs(b)))
	if !l.IsInt64() {
		return 0, fmt.Errorf("lcm(%d, %d) overflows int64", a, b)
	}
	return l.Int64(), nil
}

func integers(p PairParams) (int64, int64, error) {
	for _, v := range []float64{p.A, p.B} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= 1<<63 {
			return 0, 0, fmt.Errorf("cannot convert %v to an integer", v)
		}
	}
	return int64(p.A), int64(p.B), nil
}

func gcd(a, b int64) int64 {
	a, b = abs(a), abs(b)
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

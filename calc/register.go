package calc

import (
	"github.com/invopop/jsonschema"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

// Register adds the calculator methods to r under the "calc_" prefix.
func Register(r *jsonrpc.Registry) error {
	ns := r.Namespace(Namespace)

	builders := []*jsonrpc.MethodBuilder{
		ns.Method("add").
			Summary("Sum a list of numbers").
			Handle(jsonrpc.Func(Add)),
		ns.Method("subtract").
			Summary("Subtract b from a").
			Handle(jsonrpc.Func(Subtract)),
		ns.Method("multiply").
			Summary("Multiply a list of numbers").
			Handle(jsonrpc.Func(Multiply)),
		ns.Method("divide").
			Summary("Divide a by b").
			Error(CodeDivisionByZero, "Division by zero").
			Handle(jsonrpc.Func(Divide)),
		ns.Method("pow").
			Summary("Raise a to the power b").
			Handle(jsonrpc.Func(Pow)),
		ns.Method("sqrt").
			Summary("Square root of x").
			Error(CodeDomainError, "Domain error: negative input").
			Handle(jsonrpc.Func(Sqrt)),
		ns.Method("mean").
			Summary("Arithmetic mean of a non-empty list").
			Handle(jsonrpc.Func(Mean)),
		ns.Method("median").
			Summary("Median of a non-empty list").
			Handle(jsonrpc.Func(Median)),
		ns.Method("factorial").
			Summary("Exact factorial of n").
			Description("The result is an exact integer and may exceed the range of a double.").
			Error(jsonrpc.CodeInvalidParams, "Invalid params: n must be a non-negative integer").
			Returns("factorial", &jsonschema.Schema{Type: "integer"}).
			Handle(jsonrpc.Func(Factorial)),
		ns.Method("gcd").
			Summary("Greatest common divisor of a and b, truncated to integers").
			Handle(jsonrpc.Func(GCD)),
		ns.Method("lcm").
			Summary("Least common multiple of a and b, truncated to integers").
			Handle(jsonrpc.Func(LCM)),
	}

	for _, b := range builders {
		if err := b.Register(); err != nil {
			return err
		}
	}
	return nil
}

package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"farewatch/pkg/models"
)

// Filter is a compiled boolean expression over a price event. Available
// variables: flightId, airline, origin, destination, departureDate
// (timestamp), price (double), currency and source (URL the event came from).
type Filter struct {
	expression string
	program    cel.Program
}

func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("flightId", cel.StringType),
		cel.Variable("airline", cel.StringType),
		cel.Variable("origin", cel.StringType),
		cel.Variable("destination", cel.StringType),
		cel.Variable("departureDate", cel.TimestampType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("source", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewFilter compiles expression once. It must evaluate to bool.
func NewFilter(expression string) (*Filter, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Filter{expression: expression, program: program}, nil
}

func (f *Filter) Expression() string {
	return f.expression
}

func (f *Filter) Allow(ctx context.Context, event models.PriceEvent, source string) (bool, error) {
	price, _ := event.Price.Float64()

	vars := map[string]interface{}{
		"flightId":      event.FlightID,
		"airline":       event.Airline,
		"origin":        event.Origin,
		"destination":   event.Destination,
		"departureDate": event.DepartureDate.Time,
		"price":         price,
		"currency":      event.Currency,
		"source":        source,
	}

	result, _, err := f.program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	allowed, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return allowed, nil
}

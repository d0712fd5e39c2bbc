package nodes

import (
	"context"

	"github.com/kbukum/pixelflow/dag"
)

// Variable is a source node that publishes one editable value on its
// output pin. The value is set from a project document or with Set; Execute
// only normalizes it to the pin type.
type Variable struct {
	*dag.NodeBase
	pin string
}

func newVariable(info dag.Info, pin string, t dag.PinType, def any, description string) *Variable {
	info.Category = CategoryVariables
	return &Variable{
		NodeBase: dag.NewNodeBase(info, func(s *dag.PinSet) {
			s.Output(pin, t, dag.WithDefault(def), dag.WithDescription(description))
		}),
		pin: pin,
	}
}

// NewFloatVariable creates a FloatVariableNode.
func NewFloatVariable() *Variable {
	return newVariable(dag.Info{
		Name: "Float Variable", Description: "Outputs a floating-point number value", ClassName: "FloatVariableNode",
	}, "value", dag.PinFloat, 0.0, "Float value output")
}

// NewIntegerVariable creates an IntegerVariableNode.
func NewIntegerVariable() *Variable {
	return newVariable(dag.Info{
		Name: "Integer Variable", Description: "Outputs an integer number value", ClassName: "IntegerVariableNode",
	}, "value", dag.PinInt, 0, "Integer value output")
}

// NewBooleanVariable creates a BooleanVariableNode.
func NewBooleanVariable() *Variable {
	return newVariable(dag.Info{
		Name: "Boolean Variable", Description: "Outputs a true/false value", ClassName: "BooleanVariableNode",
	}, "value", dag.PinBool, false, "Boolean value output")
}

// NewStringVariable creates a StringVariableNode.
func NewStringVariable() *Variable {
	return newVariable(dag.Info{
		Name: "String Variable", Description: "Outputs a text string value", ClassName: "StringVariableNode",
	}, "value", dag.PinString, "", "String value output")
}

// NewPathVariable creates a PathVariableNode.
func NewPathVariable() *Variable {
	return newVariable(dag.Info{
		Name: "Path Variable", Description: "Outputs a file or folder path", ClassName: "PathVariableNode",
	}, "path", dag.PinPath, "", "File or folder path output")
}

// Pin returns the output pin carrying the value.
func (v *Variable) Pin() *dag.Pin { return v.OutputPin(v.pin) }

// Value returns the current value.
func (v *Variable) Value() any {
	val, _ := v.Pin().Value()
	return val
}

// Set coerces val to the pin type and publishes it.
func (v *Variable) Set(val any) error {
	p := v.Pin()
	coerced, err := dag.CoerceValue(val, p.Type())
	if err != nil {
		return err
	}
	return p.SetValue(coerced)
}

// Execute re-publishes the current value in its canonical type.
func (v *Variable) Execute(context.Context, *dag.ExecutionContext) error {
	if v.Value() == nil {
		v.Pin().Reset()
		return nil
	}
	return v.Set(v.Value())
}

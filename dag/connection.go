package dag

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kbukum/pixelflow/errors"
)

// Connection is an edge from one output pin to one input pin. A Connection
// exists only in the wired state: creating it registers it on both pins and
// detaching it unregisters it from both.
type Connection struct {
	id     string
	output *Pin
	input  *Pin
}

// newConnection validates the endpoints and wires the connection onto both
// pins. On error neither pin is modified.
func newConnection(output, input *Pin) (*Connection, error) {
	if err := checkConnectable(output, input); err != nil {
		return nil, err
	}
	c := &Connection{id: uuid.NewString(), output: output, input: input}
	output.addConnection(c)
	input.addConnection(c)
	return c, nil
}

// checkConnectable applies the direction and type rules for output -> input.
func checkConnectable(output, input *Pin) error {
	switch {
	case output == nil || input == nil:
		return errors.IncompatibleConnection("both pins are required")
	case output == input:
		return errors.IncompatibleConnection(fmt.Sprintf("cannot connect pin %s to itself", output))
	case output.dir == input.dir:
		return errors.IncompatibleConnection(fmt.Sprintf(
			"cannot connect %s to %s: both pins are %ss", output, input, output.dir))
	case output.dir != Output:
		return errors.IncompatibleConnection(fmt.Sprintf(
			"cannot connect %s to %s: the first pin must be an output", output, input))
	case !IsCompatible(output.typ, input.typ):
		return errors.IncompatibleConnection(fmt.Sprintf(
			"cannot connect %s to %s: incompatible pin types", output, input))
	}
	return nil
}

func (c *Connection) ID() string { return c.id }

// Output returns the upstream pin.
func (c *Connection) Output() *Pin { return c.output }

// Input returns the downstream pin.
func (c *Connection) Input() *Pin { return c.input }

func (c *Connection) OutputNode() *NodeBase { return c.output.node }
func (c *Connection) InputNode() *NodeBase  { return c.input.node }

func (c *Connection) String() string {
	return fmt.Sprintf("%s -> %s", c.output.qualifiedName(), c.input.qualifiedName())
}

func (c *Connection) detach() {
	c.output.removeConnection(c)
	c.input.removeConnection(c)
}

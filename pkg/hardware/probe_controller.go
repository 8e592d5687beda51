package hardware

import "context"

// controllerProbe reports fan and pump controllers (Corsair, NZXT, Aquacomputer)
// found among the hwmon chips.
type controllerProbe struct{}

func newControllerProbe() *controllerProbe { return &controllerProbe{} }

func (p *controllerProbe) Name() string       { return "controller-probe" }
func (p *controllerProbe) Category() Category { return CategoryController }
func (p *controllerProbe) Init() error        { return nil }
func (p *controllerProbe) Close() error       { return nil }

func (p *controllerProbe) Collect(_ context.Context, u *Update) ([]*Node, error) {
	return chipNodes(CategoryController, u.Chips[CategoryController]), nil
}

package hardware

import "context"

// motherboardProbe reports the mainboard as a single root whose children are
// the sensor chips (Super I/O, ACPI zones) that no other category claims.
type motherboardProbe struct {
	board func() string
}

func newMotherboardProbe() *motherboardProbe {
	return &motherboardProbe{board: boardName}
}

func (p *motherboardProbe) Name() string       { return "motherboard-probe" }
func (p *motherboardProbe) Category() Category { return CategoryMotherboard }
func (p *motherboardProbe) Init() error        { return nil }
func (p *motherboardProbe) Close() error       { return nil }

func (p *motherboardProbe) Collect(_ context.Context, u *Update) ([]*Node, error) {
	name := p.board()
	if name == "" {
		name = "Motherboard"
	}
	return []*Node{{
		Identity: Identity{Category: CategoryMotherboard, Name: name},
		Children: chipNodes(CategoryMotherboard, u.Chips[CategoryMotherboard]),
	}}, nil
}

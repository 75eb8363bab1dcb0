package fixture

import "context"

// Memory serves an already loaded Set through the same methods as Loader.
type Memory struct {
	Set Set
}

func (m Memory) Credentials(ctx context.Context) (Credentials, error) {
	return m.Set.Credentials, ctx.Err()
}

func (m Memory) Lists(ctx context.Context) ([]string, error) {
	return append([]string(nil), m.Set.Lists...), ctx.Err()
}

func (m Memory) Cards(ctx context.Context) ([]Card, error) {
	return append([]Card(nil), m.Set.Cards...), ctx.Err()
}

func (m Memory) Moves(ctx context.Context) ([]Move, error) {
	return append([]Move(nil), m.Set.Moves...), ctx.Err()
}

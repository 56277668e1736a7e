package console

import (
	"context"

	"github.com/ashureev/ops-console/internal/dashboard"
)

// DashboardView shows the business summary.
type DashboardView struct {
	agg *dashboard.Aggregator
	ctx context.Context
}

func newDashboardView(ctx context.Context, deps mountDeps) *DashboardView {
	return &DashboardView{
		ctx: ctx,
		agg: dashboard.New(ctx, deps.backend, deps.cfg.Dashboard,
			dashboard.WithClock(deps.clock),
			dashboard.WithLogger(deps.logger),
			dashboard.WithOnChange(deps.onChange),
		),
	}
}

func (v *DashboardView) Name() string { return ViewDashboard }

func (v *DashboardView) Snapshot() any { return v.agg.Snapshot() }

// Handle runs refresh and cancel_refresh. A refresh outlives the command
// but not the view.
func (v *DashboardView) Handle(_ context.Context, cmd Command) error {
	switch cmd.Type {
	case "refresh":
		_, err := v.agg.StartRefresh(v.ctx)
		return err
	case "cancel_refresh":
		v.agg.CancelRefresh()
		return nil
	default:
		return unknownCommand(v.Name(), cmd)
	}
}

func (v *DashboardView) Close() { v.agg.Close() }

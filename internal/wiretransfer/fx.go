package wiretransfer

import "go.uber.org/fx"

var Module = fx.Module("wiretransfer",
	fx.Provide(NewImporter),
)

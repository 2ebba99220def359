package modules

import (
	"github.com/lucerna-ai/lucerna/modules/billing"
	"github.com/lucerna-ai/lucerna/modules/chat"
	"github.com/lucerna-ai/lucerna/pkg/application"
)

// BuiltInModules is ordered: billing registers the token accounts the chat
// quota guard depends on.
var BuiltInModules = []application.Module{
	billing.NewModule(),
	chat.NewModule(),
}

func Load(app application.Application, mods ...application.Module) error {
	for _, module := range mods {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}

package billing

import (
	"github.com/lucerna-ai/lucerna/modules/billing/infrastructure/persistence"
	"github.com/lucerna-ai/lucerna/modules/billing/presentation/controllers"
	"github.com/lucerna-ai/lucerna/modules/billing/services"
	"github.com/lucerna-ai/lucerna/pkg/application"
	"github.com/lucerna-ai/lucerna/pkg/configuration"
)

type Module struct{}

func NewModule() application.Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "billing"
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	billingService := services.NewBillingService(
		persistence.NewPgAccountRepository(),
		app.EventPublisher(),
	)
	app.RegisterServices(billingService)
	app.RegisterControllers(
		controllers.NewTopUpController(conf.Billing.WebhookSecret),
	)
	return nil
}

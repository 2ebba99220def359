package chat

import (
	"embed"

	billingservices "github.com/lucerna-ai/lucerna/modules/billing/services"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/llm"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/persistence"
	"github.com/lucerna-ai/lucerna/modules/chat/presentation/controllers"
	"github.com/lucerna-ai/lucerna/modules/chat/services"
	"github.com/lucerna-ai/lucerna/pkg/application"
	"github.com/lucerna-ai/lucerna/pkg/composables"
	"github.com/lucerna-ai/lucerna/pkg/configuration"
)

//go:embed presentation/locales/*.json
var localeFiles embed.FS

type Module struct{}

func NewModule() application.Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "chat"
}

// Register wires the chat relay. Billing must be registered first: the quota
// guard settles against its token accounts.
func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	openaiClient := llm.NewOpenAIClient(llm.OpenAIClientConfig{
		APIKey:  conf.OpenAI.APIKey,
		BaseURL: conf.OpenAI.BaseURL,
	})
	deepseekClient := llm.NewDeepSeekClient(llm.DeepSeekClientConfig{
		APIKey:  conf.DeepSeek.APIKey,
		BaseURL: conf.DeepSeek.BaseURL,
	})
	retrievalClient := llm.NewAssistantClient(llm.AssistantClientConfig{
		APIKey:       conf.OpenAI.APIKey,
		BaseURL:      conf.OpenAI.BaseURL,
		PollInterval: conf.Chat.RunPollInterval,
		PollAttempts: conf.Chat.RunPollAttempts,
	})

	billingService := app.Service(billingservices.BillingService{}).(*billingservices.BillingService)

	assistantRepo := services.NewCachedAssistantRepository(
		persistence.NewPgAssistantRepository(),
		conf.Chat.AssistantCacheTTL,
	)
	conversationService := services.NewConversationService(
		persistence.NewPgConversationRepository(),
		conf.Chat.TitleLength,
		composables.InTx,
	)
	quotaService := services.NewQuotaService(
		billingService,
		persistence.NewPgUsageRepository(),
		conf.Chat.QuotaThreshold,
		composables.InTx,
	)
	chatService := services.NewChatService(
		conversationService,
		assistantRepo,
		quotaService,
		services.NewContextBuilder(conf.Chat.HistoryWindow),
		services.NewRelay(conf.Chat.StreamTimeout),
		services.ClientSet{
			OpenAI:    openaiClient,
			DeepSeek:  deepseekClient,
			Retrieval: retrievalClient,
		},
		app.EventPublisher(),
	)
	assistantService := services.NewAssistantService(assistantRepo, openaiClient)

	registerMetrics(app.EventPublisher())

	app.RegisterServices(
		chatService,
		quotaService,
		assistantService,
		conversationService,
	)
	app.RegisterControllers(
		controllers.NewChatAPIController(),
		controllers.NewAdminController(conf.Chat.AdminToken),
	)
	app.RegisterLocaleFiles(&localeFiles)
	return nil
}

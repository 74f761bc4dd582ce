package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nevera/nevera_server/internal/model"
	"github.com/nevera/nevera_server/internal/pkg/ai"
	"github.com/nevera/nevera_server/internal/pkg/queue"
	"github.com/nevera/nevera_server/internal/repository"
	"github.com/nevera/nevera_server/internal/testutil"
)

type botFixture struct {
	svc         *BotService
	db          *gorm.DB
	redis       *redis.Client
	contextRepo *repository.ContextRepository
	productRepo *repository.ProductRepository
	historyRepo *repository.HistoryRepository
	gen         *fakeGenerator
}

func setupBotService(t *testing.T, gen *fakeGenerator) *botFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	client := testutil.SetupTestRedis(t)

	cfg := testConfig()
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	historyRepo := repository.NewHistoryRepository(db, cfg.Bot.HistoryLimit)
	contextRepo := repository.NewContextRepository(client, time.Duration(cfg.Bot.ContextTTLMinutes)*time.Minute)
	notifyQueue := queue.NewQueue(client, cfg.Quota.NotifyQueue)

	quotaService := NewQuotaService(usageRepo, userRepo, client, notifyQueue, cfg, testLogger())

	var generator ai.TextGenerator
	if gen != nil {
		generator = gen
	}

	intentService := NewIntentService(generator, productRepo, historyRepo, cfg, testLogger())
	svc := NewBotService(userRepo, productRepo, historyRepo, contextRepo, quotaService, intentService, generator, cfg, testLogger())

	return &botFixture{
		svc:         svc,
		db:          db,
		redis:       client,
		contextRepo: contextRepo,
		productRepo: productRepo,
		historyRepo: historyRepo,
		gen:         gen,
	}
}

func TestBotService_CreatesUserOnFirstMessage(t *testing.T) {
	f := setupBotService(t, nil)

	reply := f.svc.HandleMessage(context.Background(), "34600111222", "Ana", "hola")
	assert.Contains(t, reply, "Hola")

	user, err := repository.NewUserRepository(f.db).GetByPhone("34600111222")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
}

func TestBotService_AddProductWithDate(t *testing.T) {
	f := setupBotService(t, nil)

	reply := f.svc.HandleMessage(context.Background(), "34600111222", "Ana", "tengo leche que caduca mañana")
	assert.Contains(t, reply, "Guardado")
	assert.Contains(t, reply, "leche")

	user, _ := repository.NewUserRepository(f.db).GetByPhone("34600111222")
	products, err := f.productRepo.ListByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "leche", products[0].Name)
	assert.Equal(t, 1, products[0].DaysLeft(time.Now()))
}

func TestBotService_AddProductWithoutName_AsksAndResumes(t *testing.T) {
	f := setupBotService(t, nil)
	ctx := context.Background()

	reply := f.svc.HandleMessage(ctx, "34600111222", "Ana", "añade")
	assert.Contains(t, reply, "Qué producto")

	user, _ := repository.NewUserRepository(f.db).GetByPhone("34600111222")
	pending, err := f.contextRepo.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, model.PendingClarifyProduct, pending.PendingAction)

	// The follow-up completes the add and clears the context.
	reply = f.svc.HandleMessage(ctx, "34600111222", "Ana", "yogur, caduca en 3 días")
	assert.Contains(t, reply, "Guardado")

	pending, err = f.contextRepo.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	products, _ := f.productRepo.ListByUser(user.ID)
	require.Len(t, products, 1)
	assert.Equal(t, "yogur", products[0].Name)
}

func TestBotService_RemoveSingleMatch(t *testing.T) {
	f := setupBotService(t, nil)
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))
	testutil.TestProduct(t, f.db, user.ID, "Yogur", 3)

	reply := f.svc.HandleMessage(context.Background(), "34600111222", "Ana", "borra el yogur")
	assert.Contains(t, reply, "he borrado")

	count, _ := f.productRepo.CountByUser(user.ID)
	assert.Zero(t, count)
}

func TestBotService_RemoveAmbiguous_NumericSelection(t *testing.T) {
	f := setupBotService(t, nil)
	ctx := context.Background()
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))
	testutil.TestProduct(t, f.db, user.ID, "Leche entera", 2)
	testutil.TestProduct(t, f.db, user.ID, "Leche desnatada", 5)

	reply := f.svc.HandleMessage(ctx, "34600111222", "Ana", "borra la leche")
	assert.Contains(t, reply, "1.")
	assert.Contains(t, reply, "2.")

	pending, err := f.contextRepo.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, model.PendingConfirmRemoval, pending.PendingAction)

	// Pick option 1: the soonest-expiring match.
	reply = f.svc.HandleMessage(ctx, "34600111222", "Ana", "1")
	assert.Contains(t, reply, "Leche entera")

	products, _ := f.productRepo.ListByUser(user.ID)
	require.Len(t, products, 1)
	assert.Equal(t, "Leche desnatada", products[0].Name)
}

func TestBotService_RemoveSelection_RejectsOutOfRange(t *testing.T) {
	f := setupBotService(t, nil)
	ctx := context.Background()
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))
	testutil.TestProduct(t, f.db, user.ID, "Leche entera", 2)
	testutil.TestProduct(t, f.db, user.ID, "Leche desnatada", 5)

	f.svc.HandleMessage(ctx, "34600111222", "Ana", "borra la leche")
	reply := f.svc.HandleMessage(ctx, "34600111222", "Ana", "7")
	assert.Contains(t, reply, "No he borrado nada")

	// Nothing deleted, context consumed.
	count, _ := f.productRepo.CountByUser(user.ID)
	assert.Equal(t, int64(2), count)

	pending, err := f.contextRepo.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestBotService_RemoveNoMatch_ListsInventory(t *testing.T) {
	f := setupBotService(t, nil)
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))
	testutil.TestProduct(t, f.db, user.ID, "Pan", 1)

	reply := f.svc.HandleMessage(context.Background(), "34600111222", "Ana", "borra el tomate")
	assert.Contains(t, reply, "No encuentro")
	assert.Contains(t, reply, "Pan")
}

func TestBotService_PendingContextOwnsNextMessage(t *testing.T) {
	f := setupBotService(t, nil)
	ctx := context.Background()
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))
	testutil.TestProduct(t, f.db, user.ID, "Leche entera", 2)
	testutil.TestProduct(t, f.db, user.ID, "Leche desnatada", 5)

	f.svc.HandleMessage(ctx, "34600111222", "Ana", "borra la leche")

	// "1" would never classify as anything useful, but even a message
	// that looks like a fresh command is consumed by the pending state.
	reply := f.svc.HandleMessage(ctx, "34600111222", "Ana", "hola")
	assert.NotContains(t, reply, "asistente de nevera")
	assert.Contains(t, reply, "No he borrado nada")
}

func TestBotService_ExpiredContextIgnored(t *testing.T) {
	f := setupBotService(t, nil)
	ctx := context.Background()
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))

	// Plant a context whose stamp is already past even though the key
	// itself is still alive.
	payload, _ := json.Marshal([]removalCandidate{{ID: 1, Name: "Leche"}})
	data, _ := json.Marshal(&model.ConversationContext{
		UserID:        user.ID,
		PendingAction: model.PendingConfirmRemoval,
		Payload:       payload,
		ExpiresAt:     time.Now().Add(-time.Minute),
	})
	require.NoError(t, f.redis.Set(ctx, fmt.Sprintf("ctx:%d", user.ID), data, time.Hour).Err())

	reply := f.svc.HandleMessage(ctx, "34600111222", "Ana", "hola")
	assert.Contains(t, reply, "Hola")
}

func TestBotService_TwentyFirstMessageDenied(t *testing.T) {
	f := setupBotService(t, nil)
	ctx := context.Background()
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))
	testutil.TestUsage(t, f.db, user.ID, 20, 0, 0)

	reply := f.svc.HandleMessage(ctx, "34600111222", "Ana", "hola")
	assert.Contains(t, reply, "límite")
	assert.Contains(t, reply, "Premium")
}

func TestBotService_ListProducts(t *testing.T) {
	f := setupBotService(t, nil)
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))
	testutil.TestProduct(t, f.db, user.ID, "Leche", 1)
	testutil.TestProduct(t, f.db, user.ID, "Queso", 10)

	reply := f.svc.HandleMessage(context.Background(), "34600111222", "Ana", "¿qué tengo en la nevera?")
	assert.Contains(t, reply, "Leche")
	assert.Contains(t, reply, "Queso")
	assert.Contains(t, reply, "2 productos")
}

func TestBotService_RecipeUsesExpiringProductsAndLeavesFollowUp(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		`{"intent":"recipe_request"}`,
		"Tortilla rápida de leche y huevo.",
	}}
	f := setupBotService(t, gen)
	ctx := context.Background()
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))
	testutil.TestProduct(t, f.db, user.ID, "Leche", 1)
	testutil.TestProduct(t, f.db, user.ID, "Garbanzos", 200)

	reply := f.svc.HandleMessage(ctx, "34600111222", "Ana", "dame una receta")
	assert.Contains(t, reply, "Tortilla")
	assert.Contains(t, reply, "paso a paso")

	pending, err := f.contextRepo.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, model.PendingRecipeFollowUp, pending.PendingAction)

	// Only the soon-to-expire product reaches the prompt.
	prompts := gen.prompts
	require.NotEmpty(t, prompts)
	last := prompts[len(prompts)-1]
	assert.Contains(t, last, "Leche")
	assert.NotContains(t, last, "Garbanzos")
}

func TestBotService_RecipeFollowUpYes(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Receta completa: 1. Bate los huevos..."}}
	f := setupBotService(t, gen)
	ctx := context.Background()
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))

	payload, _ := json.Marshal(recipePayload{ProductNames: []string{"Leche", "Huevos"}})
	require.NoError(t, f.contextRepo.Set(ctx, &model.ConversationContext{
		UserID:        user.ID,
		Intent:        IntentRecipe,
		PendingAction: model.PendingRecipeFollowUp,
		Payload:       payload,
	}))

	reply := f.svc.HandleMessage(ctx, "34600111222", "Ana", "sí")
	assert.Contains(t, reply, "Receta completa")

	pending, err := f.contextRepo.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestBotService_RecipeFollowUpNo(t *testing.T) {
	f := setupBotService(t, nil)
	ctx := context.Background()
	user := testutil.TestUser(t, f.db, testutil.WithPhone("34600111222"))

	payload, _ := json.Marshal(recipePayload{ProductNames: []string{"Leche"}})
	require.NoError(t, f.contextRepo.Set(ctx, &model.ConversationContext{
		UserID:        user.ID,
		Intent:        IntentRecipe,
		PendingAction: model.PendingRecipeFollowUp,
		Payload:       payload,
	}))

	reply := f.svc.HandleMessage(ctx, "34600111222", "Ana", "no gracias")
	assert.Contains(t, reply, "cambias de idea")
}

func TestBotService_HistoryRecordsBothDirections(t *testing.T) {
	f := setupBotService(t, nil)

	f.svc.HandleMessage(context.Background(), "34600111222", "Ana", "hola")

	user, _ := repository.NewUserRepository(f.db).GetByPhone("34600111222")
	msgs, err := f.historyRepo.Recent(user.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.DirectionIn, msgs[0].Direction)
	assert.Equal(t, "hola", msgs[0].Body)
	assert.Equal(t, model.DirectionOut, msgs[1].Direction)
	assert.True(t, strings.Contains(msgs[1].Body, "Hola"))
}

func TestBotService_UrgentCheckIncludesLaterToday(t *testing.T) {
	f := setupBotService(t, nil)
	ctx := context.Background()

	f.svc.HandleMessage(ctx, "34600111222", "Ana", "hola")
	user, err := repository.NewUserRepository(f.db).GetByPhone("34600111222")
	require.NoError(t, err)

	// Expires tonight: day zero, the most urgent item there is.
	now := time.Now()
	tonight := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location())
	testutil.TestProduct(t, f.db, user.ID, "Leche", 0, testutil.WithExpiry(tonight))

	reply := f.svc.HandleMessage(ctx, "34600111222", "Ana", "¿qué caduca hoy?")
	assert.Contains(t, reply, "Leche")
	assert.NotContains(t, reply, "Nada caduca")
}

func TestBotService_GeneralQuestionFallsBackWithoutAI(t *testing.T) {
	f := setupBotService(t, nil)

	reply := f.svc.HandleMessage(context.Background(), "34600111222", "Ana", "cuánto dura un huevo cocido")
	// Without a model the bot falls back to the capabilities overview.
	assert.Contains(t, reply, "Puedo ayudarte")
}

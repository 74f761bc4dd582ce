package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/model"
	"github.com/nevera/nevera_server/internal/pkg/ai"
	"github.com/nevera/nevera_server/internal/repository"
)

// BotService is the command router: one inbound message in, one reply
// out. All handler failures are absorbed here so the transport layer
// never sees an error it would retry on.
type BotService struct {
	userRepo    *repository.UserRepository
	productRepo *repository.ProductRepository
	historyRepo *repository.HistoryRepository
	contextRepo *repository.ContextRepository
	quota       *QuotaService
	intents     *IntentService
	generator   ai.TextGenerator
	cfg         *config.Config
	log         zerolog.Logger
}

func NewBotService(
	userRepo *repository.UserRepository,
	productRepo *repository.ProductRepository,
	historyRepo *repository.HistoryRepository,
	contextRepo *repository.ContextRepository,
	quota *QuotaService,
	intents *IntentService,
	generator ai.TextGenerator,
	cfg *config.Config,
	log zerolog.Logger,
) *BotService {
	return &BotService{
		userRepo:    userRepo,
		productRepo: productRepo,
		historyRepo: historyRepo,
		contextRepo: contextRepo,
		quota:       quota,
		intents:     intents,
		generator:   generator,
		cfg:         cfg,
		log:         log,
	}
}

// removalCandidate is the numbered-option payload stored while waiting
// for the user to pick which product to delete.
type removalCandidate struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type recipePayload struct {
	ProductNames []string `json:"product_names"`
}

// HandleMessage runs the routing pipeline in strict order: user
// lookup, activity bump, pending-context dispatch, daily message
// quota, classification, per-action quota, handler, history.
func (s *BotService) HandleMessage(ctx context.Context, phone, name, text string) string {
	user, err := s.userRepo.GetOrCreateByPhone(phone, name)
	if err != nil {
		s.log.Error().Err(err).Str("phone", phone).Msg("user lookup failed")
		return msgGenericError
	}
	if err := s.userRepo.TouchActivity(user.ID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("activity bump failed")
	}

	reply, intent := s.dispatch(ctx, user, text)

	s.persistTurn(user.ID, text, intent, reply)
	return reply
}

func (s *BotService) dispatch(ctx context.Context, user *model.User, text string) (reply, intent string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Int64("user_id", user.ID).Msg("handler panicked")
			reply = msgGenericError
		}
	}()

	// A live pending action owns the next message outright, even when
	// the text would match a strong intent pattern.
	pending, err := s.contextRepo.Get(ctx, user.ID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("context read failed")
	}
	if pending != nil && pending.PendingAction != "" {
		return s.handlePending(ctx, user, pending, text), pending.Intent
	}

	// Every inbound message spends one daily-message unit; a denial
	// here short-circuits before classification.
	res, err := s.quota.CheckAndConsume(ctx, user, ActionDailyMessage)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("daily quota check failed")
		return msgGenericError, ""
	}
	if !res.Allowed {
		return UpsellMessage(ActionDailyMessage, res.ResetAt), ""
	}

	c, err := s.intents.Classify(ctx, user, text)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("classification failed")
		return msgGenericError, ""
	}

	if action, limited := quotaAction(c.Intent); limited {
		res, err := s.quota.CheckAndConsume(ctx, user, action)
		if err != nil {
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("quota check failed")
			return msgGenericError, c.Intent
		}
		if !res.Allowed {
			return UpsellMessage(action, res.ResetAt), c.Intent
		}
	}

	return s.handleIntent(ctx, user, c, text), c.Intent
}

// quotaAction maps quota-limited intents to their ledger action.
// Informational intents only pay the routing-level message quota.
func quotaAction(intent string) (string, bool) {
	switch intent {
	case IntentAddProduct:
		return ActionAddProduct, true
	case IntentRemove:
		return ActionRemoveProduct, true
	case IntentRecipe:
		return ActionRecipe, true
	case IntentGeneral:
		return ActionAIQuery, true
	default:
		return "", false
	}
}

func (s *BotService) handleIntent(ctx context.Context, user *model.User, c *Classification, text string) string {
	switch c.Intent {
	case IntentAddProduct:
		return s.handleAddProduct(ctx, user, c.Entities)
	case IntentRemove:
		return s.handleRemoveProduct(ctx, user, c.Entities, text)
	case IntentRecipe:
		return s.handleRecipe(ctx, user, c.Entities)
	case IntentListProducts:
		return s.handleListProducts(user)
	case IntentUrgentCheck:
		return s.handleUrgentCheck(user, c.Entities)
	case IntentStats:
		return s.handleStats(user)
	case IntentGreeting:
		if c.Context.HasProducts {
			return fmt.Sprintf("¡Hola de nuevo! 👋 Tienes %d productos guardados. ¿En qué te ayudo?", c.Context.ProductCount)
		}
		return msgGreeting
	case IntentHelp:
		return msgHelp
	default:
		return s.handleGeneral(ctx, user, text, c.Context)
	}
}

// --- intent handlers ---

func (s *BotService) handleAddProduct(ctx context.Context, user *model.User, e Entities) string {
	if e.ProductName == "" {
		c := &model.ConversationContext{
			UserID:        user.ID,
			Intent:        IntentAddProduct,
			PendingAction: model.PendingClarifyProduct,
		}
		if err := s.contextRepo.Set(ctx, c); err != nil {
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("context write failed")
		}
		return "¿Qué producto quieres guardar? Dime el nombre y cuándo caduca, por ejemplo: \"leche, caduca el viernes\" 🥛"
	}

	expiry := time.Now().AddDate(0, 0, 7)
	assumed := true
	if e.ExpiryAt != nil {
		expiry = *e.ExpiryAt
		assumed = false
	}

	product := &model.Product{
		UserID:   user.ID,
		Name:     e.ProductName,
		ExpiryAt: expiry,
		Price:    e.Price,
		Quantity: 1,
	}
	if err := s.productRepo.Create(product); err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("product create failed")
		return msgGenericError
	}

	reply := confirmProductAdded(product)
	if assumed {
		reply += "\n(No me dijiste la fecha, he supuesto 7 días. Puedes corregirla cuando quieras.)"
	}
	return reply
}

func (s *BotService) handleRemoveProduct(ctx context.Context, user *model.User, e Entities, text string) string {
	name := e.ProductName
	if name == "" {
		name = strings.TrimSpace(text)
	}

	matches, err := s.productRepo.MatchByName(user.ID, name)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("product match failed")
		return msgGenericError
	}

	switch len(matches) {
	case 0:
		products, err := s.productRepo.ListByUser(user.ID)
		if err != nil || len(products) == 0 {
			return msgNoProducts
		}
		names := make([]string, 0, len(products))
		for _, p := range products {
			names = append(names, p.Name)
		}
		return fmt.Sprintf("No encuentro \"%s\" 🤔 Tienes: %s. ¿Cuál quieres borrar?", name, strings.Join(names, ", "))

	case 1:
		if err := s.productRepo.Delete(matches[0].ID); err != nil {
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("product delete failed")
			return msgGenericError
		}
		return confirmProductRemoved(matches[0].Name)

	default:
		candidates := make([]removalCandidate, len(matches))
		var b strings.Builder
		b.WriteString("He encontrado varios, ¿cuál borro? Responde con el número:\n")
		for i, p := range matches {
			candidates[i] = removalCandidate{ID: p.ID, Name: p.Name}
			fmt.Fprintf(&b, "%d. %s (caduca %s)\n", i+1, p.Name, p.ExpiryAt.Format("02/01"))
		}
		payload, _ := json.Marshal(candidates)
		c := &model.ConversationContext{
			UserID:        user.ID,
			Intent:        IntentRemove,
			PendingAction: model.PendingConfirmRemoval,
			Payload:       payload,
		}
		if err := s.contextRepo.Set(ctx, c); err != nil {
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("context write failed")
		}
		return strings.TrimSpace(b.String())
	}
}

func (s *BotService) handleRecipe(ctx context.Context, user *model.User, e Entities) string {
	now := time.Now()
	products, err := s.productRepo.ListExpiringWithin(user.ID, s.cfg.Bot.RecipeUrgentDays, now)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("product list failed")
		return msgGenericError
	}
	if len(products) == 0 {
		return msgNothingSoon
	}

	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}

	prompt := fmt.Sprintf(
		"Eres un cocinero práctico. Sugiere UNA receta corta (máx 4 líneas) usando primero los ingredientes que antes caducan: %s.",
		strings.Join(names, ", "))
	if e.MealType != "" {
		prompt += " Tipo de comida: " + e.MealType + "."
	}
	if e.TimeBudget > 0 {
		prompt += fmt.Sprintf(" Tiempo máximo: %d minutos.", e.TimeBudget)
	}

	reply, err := s.generate(ctx, prompt)
	if err != nil {
		return fmt.Sprintf("Te propongo cocinar algo con lo que antes caduca: %s. ¡Así no se desperdicia nada! 🍳", strings.Join(names, ", "))
	}

	payload, _ := json.Marshal(recipePayload{ProductNames: names})
	c := &model.ConversationContext{
		UserID:        user.ID,
		Intent:        IntentRecipe,
		PendingAction: model.PendingRecipeFollowUp,
		Payload:       payload,
	}
	if err := s.contextRepo.Set(ctx, c); err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("context write failed")
	}
	return reply + "\n\n¿Quieres la receta completa paso a paso? Responde sí 👨‍🍳"
}

func (s *BotService) handleListProducts(user *model.User) string {
	products, err := s.productRepo.ListByUser(user.ID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("product list failed")
		return msgGenericError
	}
	if len(products) == 0 {
		return msgNoProducts
	}

	now := time.Now()
	var b strings.Builder
	fmt.Fprintf(&b, "Tu nevera (%d productos):\n", len(products))
	for _, p := range products {
		b.WriteString(productLine(&p, now))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func (s *BotService) handleUrgentCheck(user *model.User, e Entities) string {
	days := 0
	label := "hoy"
	switch e.DayToken {
	case "tomorrow":
		days = 1
		label = "mañana"
	case "week":
		days = 7
		label = "esta semana"
	}

	now := time.Now()
	products, err := s.productRepo.ListExpiringWithin(user.ID, days, now)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("product list failed")
		return msgGenericError
	}
	if len(products) == 0 {
		return fmt.Sprintf("Nada caduca %s 🎉", label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Caduca %s:\n", label)
	for _, p := range products {
		b.WriteString(productLine(&p, now))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func (s *BotService) handleStats(user *model.User) string {
	products, err := s.productRepo.ListByUser(user.ID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("product list failed")
		return msgGenericError
	}
	if len(products) == 0 {
		return msgNoProducts
	}

	now := time.Now()
	total := 0.0
	urgent := 0
	for _, p := range products {
		total += p.Price
		if d := p.DaysLeft(now); d >= 0 && d <= 2 {
			urgent++
		}
	}

	return fmt.Sprintf(
		"📊 Tus estadísticas:\n• %d productos guardados\n• %.2f € en tu nevera\n• %d por caducar en 2 días\n• El más urgente: %s",
		len(products), total, urgent, products[0].Name)
}

func (s *BotService) handleGeneral(ctx context.Context, user *model.User, text string, info ContextInfo) string {
	prompt := fmt.Sprintf(
		"Eres el asistente WhatsApp de una app de nevera. El usuario tiene %d productos (%d urgentes). Responde en español, máximo 3 líneas, a: %q",
		info.ProductCount, info.UrgentCount, text)

	reply, err := s.generate(ctx, prompt)
	if err != nil {
		return msgHelp
	}
	return reply
}

// --- pending-action handlers ---

// handlePending interprets the raw text by the pending state's expected
// shape and clears the context unconditionally afterwards.
func (s *BotService) handlePending(ctx context.Context, user *model.User, pending *model.ConversationContext, text string) string {
	defer func() {
		if err := s.contextRepo.Clear(ctx, user.ID); err != nil {
			s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("context clear failed")
		}
	}()

	switch pending.PendingAction {
	case model.PendingConfirmRemoval:
		return s.resolvePendingRemoval(user, pending, text)
	case model.PendingClarifyProduct:
		return s.resolvePendingClarification(ctx, user, text)
	case model.PendingRecipeFollowUp:
		return s.resolvePendingRecipe(ctx, user, pending, text)
	default:
		s.log.Warn().Str("pending", pending.PendingAction).Msg("unknown pending action")
		return msgGenericError
	}
}

func (s *BotService) resolvePendingRemoval(user *model.User, pending *model.ConversationContext, text string) string {
	var candidates []removalCandidate
	if err := json.Unmarshal(pending.Payload, &candidates); err != nil || len(candidates) == 0 {
		return msgGenericError
	}

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(candidates) {
		return fmt.Sprintf("Esperaba un número del 1 al %d. No he borrado nada.", len(candidates))
	}

	chosen := candidates[n-1]
	if err := s.productRepo.Delete(chosen.ID); err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("product delete failed")
		return msgGenericError
	}
	return confirmProductRemoved(chosen.Name)
}

func (s *BotService) resolvePendingClarification(ctx context.Context, user *model.User, text string) string {
	e := ExtractEntities(IntentAddProduct, text, time.Now().In(user.Location()))
	if e.ProductName == "" {
		// Short replies like "leche" carry the name alone.
		e.ProductName = strings.TrimSpace(strings.Split(text, ",")[0])
		if rest := strings.TrimPrefix(text, e.ProductName); rest != text {
			if d := parseRelativeDate(rest, time.Now().In(user.Location())); d != nil {
				e.ExpiryAt = d
			}
		}
	}
	if e.ExpiryAt == nil {
		if d := parseRelativeDate(text, time.Now().In(user.Location())); d != nil {
			e.ExpiryAt = d
		}
	}
	if e.ProductName == "" {
		return "No he podido identificar el producto 😅 Inténtalo de nuevo, por ejemplo: \"yogur, caduca en 3 días\"."
	}
	return s.handleAddProduct(ctx, user, e)
}

var yesTokens = map[string]bool{
	"si": true, "sí": true, "vale": true, "ok": true, "claro": true,
	"yes": true, "dale": true, "porfa": true, "por favor": true,
}

func (s *BotService) resolvePendingRecipe(ctx context.Context, user *model.User, pending *model.ConversationContext, text string) string {
	normalized := strings.ToLower(strings.TrimSpace(strings.Trim(text, "!.¡")))
	if !yesTokens[normalized] {
		return "¡Vale! Si cambias de idea, pídeme una receta cuando quieras 🍽️"
	}

	var payload recipePayload
	if err := json.Unmarshal(pending.Payload, &payload); err != nil || len(payload.ProductNames) == 0 {
		return msgGenericError
	}

	prompt := fmt.Sprintf(
		"Escribe una receta completa paso a paso (ingredientes y 5-8 pasos) usando: %s. En español.",
		strings.Join(payload.ProductNames, ", "))
	reply, err := s.generate(ctx, prompt)
	if err != nil {
		return fmt.Sprintf("Ahora mismo no puedo escribir la receta completa 😅 Mientras tanto: saltea %s con lo que tengas a mano.", strings.Join(payload.ProductNames, ", "))
	}
	return reply
}

// generate guards the optional AI dependency.
func (s *BotService) generate(ctx context.Context, prompt string) (string, error) {
	if s.generator == nil {
		return "", ai.ErrEmptyResponse
	}
	return s.generator.Generate(ctx, prompt)
}

func (s *BotService) persistTurn(userID int64, inbound, intent, outbound string) {
	err := s.historyRepo.Append(&model.ConversationMessage{
		UserID:    userID,
		Direction: model.DirectionIn,
		Body:      inbound,
		Intent:    intent,
	})
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("inbound history write failed")
	}

	if outbound == "" {
		return
	}
	err = s.historyRepo.Append(&model.ConversationMessage{
		UserID:    userID,
		Direction: model.DirectionOut,
		Body:      outbound,
	})
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("outbound history write failed")
	}
}

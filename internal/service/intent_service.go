package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/config"
	"github.com/nevera/nevera_server/internal/model"
	"github.com/nevera/nevera_server/internal/pkg/ai"
	"github.com/nevera/nevera_server/internal/repository"
)

// The closed intent set. general_question is the fallback label.
const (
	IntentAddProduct   = "add_product"
	IntentRemove       = "remove_product"
	IntentRecipe       = "recipe_request"
	IntentListProducts = "list_products"
	IntentUrgentCheck  = "urgent_check"
	IntentStats        = "stats_request"
	IntentGreeting     = "greeting"
	IntentHelp         = "help_request"
	IntentGeneral      = "general_question"
)

// Entities are the intent-specific structured values pulled from the
// message once the intent is known.
type Entities struct {
	ProductName string     `json:"product_name,omitempty"`
	Price       float64    `json:"price,omitempty"`
	ExpiryAt    *time.Time `json:"expiry_at,omitempty"`
	MealType    string     `json:"meal_type,omitempty"`
	Ingredients []string   `json:"ingredients,omitempty"`
	TimeBudget  int        `json:"time_budget_minutes,omitempty"`
	DayToken    string     `json:"day_token,omitempty"` // today | tomorrow | week
}

// ContextInfo lets handlers personalize replies without a second
// lookup.
type ContextInfo struct {
	HasProducts   bool
	ProductCount  int
	UrgentCount   int
	HistoryLength int
}

type Classification struct {
	Intent     string
	Confidence float64
	Entities   Entities
	Context    ContextInfo
}

type intentPattern struct {
	intent string
	re     *regexp.Regexp
	weight float64
}

// Hand-written Spanish phrasings per intent. Narrow but precise; the
// weight is the confidence assigned on a hit.
var intentPatterns = []intentPattern{
	{IntentAddProduct, regexp.MustCompile(`(?i)\b(tengo|compr[eé]|he comprado|a[ñn]ade|agrega|guarda|met[ií])\b.*\b(caduca|vence|expira)\b`), 0.9},
	{IntentAddProduct, regexp.MustCompile(`(?i)\b(a[ñn]ade|agrega|guarda|apunta)\b`), 0.85},
	{IntentRemove, regexp.MustCompile(`(?i)\b(borra|elimina|quita|he (usado|tirado|gastado|terminado))\b`), 0.9},
	{IntentRecipe, regexp.MustCompile(`(?i)\b(receta|recetas|cocinar|qu[eé] puedo (hacer|cocinar|preparar))\b`), 0.9},
	{IntentListProducts, regexp.MustCompile(`(?i)\b(qu[eé] tengo|mi nevera|mi inventario|lista de productos|mis productos)\b`), 0.9},
	{IntentUrgentCheck, regexp.MustCompile(`(?i)\b(caduca pronto|qu[eé] caduca|a punto de caducar|urgente|urgentes)\b`), 0.9},
	{IntentStats, regexp.MustCompile(`(?i)\b(estad[ií]sticas?|resumen|cu[aá]nto he (gastado|ahorrado|tirado))\b`), 0.9},
	{IntentGreeting, regexp.MustCompile(`(?i)^\s*(hola|buenas|buenos d[ií]as|buenas tardes|buenas noches|hey|qu[eé] tal)[\s!.]*$`), 0.85},
	{IntentHelp, regexp.MustCompile(`(?i)\b(ayuda|help|c[oó]mo funciona|qu[eé] puedes hacer|instrucciones)\b`), 0.85},
}

// specific intents the AI signal is allowed to win with on a
// disagreement; the generic fallback label never overrides a pattern.
var specificIntents = map[string]bool{
	IntentAddProduct:   true,
	IntentRemove:       true,
	IntentRecipe:       true,
	IntentListProducts: true,
	IntentUrgentCheck:  true,
	IntentStats:        true,
	IntentGreeting:     true,
	IntentHelp:         true,
}

type IntentService struct {
	generator   ai.TextGenerator
	productRepo *repository.ProductRepository
	historyRepo *repository.HistoryRepository
	cfg         *config.Config
	log         zerolog.Logger
}

func NewIntentService(
	generator ai.TextGenerator,
	productRepo *repository.ProductRepository,
	historyRepo *repository.HistoryRepository,
	cfg *config.Config,
	log zerolog.Logger,
) *IntentService {
	return &IntentService{
		generator:   generator,
		productRepo: productRepo,
		historyRepo: historyRepo,
		cfg:         cfg,
		log:         log,
	}
}

// Classify combines the pattern signal with the AI signal. AI failures
// never surface: the pattern result (possibly the low-confidence
// generic fallback) is always available.
func (s *IntentService) Classify(ctx context.Context, user *model.User, text string) (*Classification, error) {
	info, err := s.contextInfo(user)
	if err != nil {
		return nil, err
	}

	patternIntent, patternConf := matchPatterns(text)
	aiIntent := s.aiClassify(ctx, user, text, info)

	intent, conf := resolve(patternIntent, patternConf, aiIntent, s.cfg.Bot.PatternConfidenceThreshold)

	c := &Classification{
		Intent:     intent,
		Confidence: conf,
		Context:    info,
	}
	c.Entities = ExtractEntities(intent, text, time.Now().In(user.Location()))
	return c, nil
}

// resolve applies the asymmetric tie-break: agreement wins at max
// confidence; a strong pattern beats the AI; the AI beats a weak
// pattern only when it names a specific known intent.
func resolve(patternIntent string, patternConf float64, aiIntent string, threshold float64) (string, float64) {
	if aiIntent == "" {
		if patternIntent == IntentGeneral {
			return IntentGeneral, 0.4
		}
		return patternIntent, patternConf
	}

	if aiIntent == patternIntent {
		conf := patternConf
		if conf < 0.8 {
			conf = 0.8
		}
		return patternIntent, conf
	}

	if patternIntent != IntentGeneral && patternConf >= threshold {
		return patternIntent, patternConf
	}

	if specificIntents[aiIntent] {
		return aiIntent, 0.75
	}

	if patternIntent == IntentGeneral {
		return IntentGeneral, 0.4
	}
	return patternIntent, patternConf
}

func matchPatterns(text string) (string, float64) {
	best := IntentGeneral
	bestWeight := 0.3
	for _, p := range intentPatterns {
		if p.re.MatchString(text) && p.weight > bestWeight {
			best = p.intent
			bestWeight = p.weight
		}
	}
	return best, bestWeight
}

func (s *IntentService) contextInfo(user *model.User) (ContextInfo, error) {
	info := ContextInfo{}

	count, err := s.productRepo.CountByUser(user.ID)
	if err != nil {
		return info, fmt.Errorf("count products: %w", err)
	}
	info.ProductCount = int(count)
	info.HasProducts = count > 0

	urgent, err := s.productRepo.ListExpiringWithin(user.ID, 2, time.Now())
	if err != nil {
		return info, fmt.Errorf("count urgent products: %w", err)
	}
	info.UrgentCount = len(urgent)

	histCount, err := s.historyRepo.CountByUser(user.ID)
	if err != nil {
		return info, fmt.Errorf("count history: %w", err)
	}
	info.HistoryLength = int(histCount)

	return info, nil
}

// aiClassify returns the AI's label, or "" on any failure. The prompt
// pins the closed label set so a drifting reply is detectable.
func (s *IntentService) aiClassify(ctx context.Context, user *model.User, text string, info ContextInfo) string {
	if s.generator == nil {
		return ""
	}

	history, err := s.historyRepo.Recent(user.ID, 4)
	if err != nil {
		history = nil
	}
	var turns strings.Builder
	for _, h := range history {
		fmt.Fprintf(&turns, "[%s] %s\n", h.Direction, h.Body)
	}

	prompt := fmt.Sprintf(`Clasifica el mensaje de un usuario de un bot de nevera.
Contexto: %d productos guardados, %d urgentes. Últimos turnos:
%s
Mensaje: %q
Responde solo JSON: {"intent": "<etiqueta>"} con una de:
add_product, remove_product, recipe_request, list_products, urgent_check, stats_request, greeting, help_request, general_question`,
		info.ProductCount, info.UrgentCount, turns.String(), text)

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.log.Debug().Err(err).Msg("ai classification unavailable, using patterns only")
		return ""
	}

	jsonStr, ok := ai.ExtractJSON(raw)
	if !ok {
		return ""
	}
	var parsed struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return ""
	}
	if parsed.Intent != IntentGeneral && !specificIntents[parsed.Intent] {
		return ""
	}
	return parsed.Intent
}

var (
	productPhraseRe = regexp.MustCompile(`(?i)\b(?:tengo|compr[eé]|he comprado|a[ñn]ade|agrega|guarda|apunta|met[ií])\b\s+(?:un[a]?\s+|unos\s+|unas\s+|el\s+|la\s+|los\s+|las\s+)?([\p{L}\s]+?)(?:\s+que\b|\s+caduca|\s+vence|\s+expira|\s+por\b|\s*,|\s*$)`)
	removePhraseRe  = regexp.MustCompile(`(?i)\b(?:borra|elimina|quita|he (?:usado|tirado|gastado|terminado))\b\s+(?:el\s+|la\s+|los\s+|las\s+)?([\p{L}\s]+?)\s*$`)
	priceRe         = regexp.MustCompile(`(?i)(\d+(?:[.,]\d{1,2})?)\s*(?:€|eur|euros?)`)
	inDaysRe        = regexp.MustCompile(`(?i)\ben\s+(\d+)\s+d[ií]as?\b`)
	explicitDateRe  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	weekdayRe       = regexp.MustCompile(`(?i)\bel\s+(lunes|martes|mi[eé]rcoles|jueves|viernes|s[aá]bado|domingo)\b`)
	mealTypeRe      = regexp.MustCompile(`(?i)\b(desayuno|comida|almuerzo|cena|merienda|postre)\b`)
	timeBudgetRe    = regexp.MustCompile(`(?i)\ben\s+(\d+)\s+min(?:utos)?\b`)
	ingredientsRe   = regexp.MustCompile(`(?i)\bcon\s+([\p{L}\s,y]+)$`)
)

var weekdays = map[string]time.Weekday{
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"miércoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
	"sábado":    time.Saturday,
	"domingo":   time.Sunday,
}

// ExtractEntities runs the intent-specific rule extraction. Intents
// with no entities return the zero value.
func ExtractEntities(intent, text string, now time.Time) Entities {
	var e Entities

	switch intent {
	case IntentAddProduct:
		if m := productPhraseRe.FindStringSubmatch(text); len(m) > 1 {
			e.ProductName = strings.TrimSpace(m[1])
		}
		if m := priceRe.FindStringSubmatch(text); len(m) > 1 {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
				e.Price = v
			}
		}
		e.ExpiryAt = parseRelativeDate(text, now)

	case IntentRemove:
		if m := removePhraseRe.FindStringSubmatch(text); len(m) > 1 {
			e.ProductName = strings.TrimSpace(m[1])
		}

	case IntentRecipe:
		if m := mealTypeRe.FindStringSubmatch(text); len(m) > 1 {
			e.MealType = strings.ToLower(m[1])
		}
		if m := timeBudgetRe.FindStringSubmatch(text); len(m) > 1 {
			e.TimeBudget, _ = strconv.Atoi(m[1])
		}
		if m := ingredientsRe.FindStringSubmatch(text); len(m) > 1 {
			for _, part := range regexp.MustCompile(`[,y]`).Split(m[1], -1) {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					e.Ingredients = append(e.Ingredients, trimmed)
				}
			}
		}

	case IntentUrgentCheck:
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "mañana"):
			e.DayToken = "tomorrow"
		case strings.Contains(lower, "semana"):
			e.DayToken = "week"
		default:
			e.DayToken = "today"
		}
	}

	return e
}

// parseRelativeDate resolves hoy / mañana / weekday names / "en N
// días" / dd/mm against now. Weekday references point to the next
// occurrence, so "el viernes" said on a Friday means a week ahead.
func parseRelativeDate(text string, now time.Time) *time.Time {
	lower := strings.ToLower(text)

	endOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, t.Location())
	}

	if strings.Contains(lower, "pasado mañana") {
		d := endOfDay(now.AddDate(0, 0, 2))
		return &d
	}
	if strings.Contains(lower, "mañana") {
		d := endOfDay(now.AddDate(0, 0, 1))
		return &d
	}
	if strings.Contains(lower, "hoy") {
		d := endOfDay(now)
		return &d
	}

	if m := inDaysRe.FindStringSubmatch(text); len(m) > 1 {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			d := endOfDay(now.AddDate(0, 0, n))
			return &d
		}
	}

	if m := weekdayRe.FindStringSubmatch(text); len(m) > 1 {
		target, ok := weekdays[strings.ToLower(m[1])]
		if ok {
			offset := (int(target) - int(now.Weekday()) + 7) % 7
			if offset == 0 {
				offset = 7
			}
			d := endOfDay(now.AddDate(0, 0, offset))
			return &d
		}
	}

	if m := explicitDateRe.FindStringSubmatch(text); len(m) > 2 {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := now.Year()
		if len(m) > 3 && m[3] != "" {
			y, err := strconv.Atoi(m[3])
			if err == nil {
				if y < 100 {
					y += 2000
				}
				year = y
			}
		}
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			d := time.Date(year, time.Month(month), day, 23, 59, 0, 0, now.Location())
			if d.Before(now) && (len(m) <= 3 || m[3] == "") {
				d = d.AddDate(1, 0, 0)
			}
			return &d
		}
	}

	return nil
}

package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/nevera/nevera_server/internal/model"
)

// User-facing Spanish templates. Kept together so copy changes don't
// touch business logic.

const (
	msgGenericError = "Ups, algo salió mal 😅 Inténtalo de nuevo en un momento."
	msgMediaReply   = "Por ahora solo entiendo mensajes de texto 🙏 Escríbeme qué tienes en tu nevera."
	msgGreeting     = "¡Hola! 👋 Soy tu asistente de nevera. Dime qué alimentos tienes y te aviso antes de que caduquen."
	msgHelp         = "Puedo ayudarte con:\n• \"tengo leche que caduca el viernes\" — guardar un producto\n• \"¿qué tengo?\" — ver tu inventario\n• \"¿qué caduca pronto?\" — productos urgentes\n• \"dame una receta\" — receta con lo que caduca\n• \"mis estadísticas\" — tu resumen\n• \"borra el yogur\" — eliminar un producto"
	msgNoProducts   = "Aún no tienes productos guardados. Escríbeme algo como \"tengo leche que caduca mañana\" para empezar 🥛"
	msgNothingSoon  = "¡Buenas noticias! No tienes nada a punto de caducar 🎉"
	msgFollowUp     = "¿Sigues ahí? Recuerda que con Premium no tienes límites de uso 🚀 Responde PREMIUM para más info."
)

// UpsellMessage is the denial notice for a quota-limited action.
func UpsellMessage(action string, resetAt time.Time) string {
	var what string
	switch action {
	case ActionDailyMessage:
		what = "mensajes de hoy"
	case ActionAddProduct, ActionRemoveProduct:
		what = "cambios de productos de esta semana"
	default:
		what = "consultas inteligentes de este mes"
	}
	return fmt.Sprintf(
		"Has llegado al límite de %s 😔 Tu cupo se renueva el %s.\n\nCon Premium tienes uso ilimitado por 4,99 €/mes. Responde PREMIUM para saber más ⭐",
		what, resetAt.Format("02/01"))
}

func FollowUpMessage() string {
	return msgFollowUp
}

// MediaReply is the reply for non-text messages, which the bot cannot
// process.
func MediaReply() string {
	return msgMediaReply
}

func confirmProductAdded(p *model.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Guardado ✅ %s", p.Name)
	if p.Price > 0 {
		fmt.Fprintf(&b, " (%.2f €)", p.Price)
	}
	fmt.Fprintf(&b, ", caduca el %s.", p.ExpiryAt.Format("02/01/2006"))
	return b.String()
}

func confirmProductRemoved(name string) string {
	return fmt.Sprintf("Listo, he borrado %s de tu nevera ✅", name)
}

func productLine(p *model.Product, now time.Time) string {
	days := p.DaysLeft(now)
	switch {
	case days < 0:
		return fmt.Sprintf("• %s — caducado ❌", p.Name)
	case days == 0:
		return fmt.Sprintf("• %s — ¡caduca HOY! ⚠️", p.Name)
	case days == 1:
		return fmt.Sprintf("• %s — caduca mañana", p.Name)
	default:
		return fmt.Sprintf("• %s — %d días", p.Name, days)
	}
}

func alertFallbackMessage(tier string, products []model.Product, now time.Time) string {
	var b strings.Builder
	switch tier {
	case model.AlertCritical:
		b.WriteString("🚨 ¡Atención! Tienes productos que caducan hoy:\n")
	case model.AlertUrgent:
		b.WriteString("⚠️ Varios productos caducan muy pronto:\n")
	case model.AlertWeeklyReport:
		b.WriteString("📊 Tu resumen semanal de la nevera:\n")
	default:
		b.WriteString("🥗 Tu nevera hoy:\n")
	}
	for i, p := range products {
		if i >= 5 {
			fmt.Fprintf(&b, "…y %d más", len(products)-i)
			break
		}
		b.WriteString(productLine(&p, now))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// Package digest turns fetched content into the HTML message sent to a user,
// translating each snippet when the user's language is not the default.
package digest

import (
	"context"
	"fmt"
	"html"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tazhate/pulsebot/internal/ai"
	"github.com/tazhate/pulsebot/internal/domain"
)

type Mode int

const (
	ModeOnDemand Mode = iota
	ModeDaily
	ModeWeekly
)

// ModeFor maps a subscription frequency to its scheduled mode.
func ModeFor(f domain.Frequency) Mode {
	if f == domain.FrequencyWeekly {
		return ModeWeekly
	}
	return ModeDaily
}

func (m Mode) Scheduled() bool {
	return m != ModeOnDemand
}

// Snippet caps per category
var (
	scheduledLimits = map[domain.Category]int{
		domain.CategoryNews:    3,
		domain.CategoryMemes:   2,
		domain.CategoryVideos:  3,
		domain.CategoryWeather: 1,
		domain.CategorySports:  3,
		domain.CategorySocial:  5,
	}
	onDemandLimits = map[domain.Category]int{
		domain.CategoryNews:    5,
		domain.CategoryMemes:   3,
		domain.CategoryVideos:  3,
		domain.CategoryWeather: 1,
		domain.CategorySports:  5,
		domain.CategorySocial:  10,
	}
)

// Limit returns how many snippets a digest of category carries in mode.
func Limit(category domain.Category, mode Mode) int {
	if mode.Scheduled() {
		return scheduledLimits[category]
	}
	return onDemandLimits[category]
}

type Digest struct {
	Category domain.Category
	Text     string
	Options  domain.FormatOptions
	// Snippets is the number of content items rendered
	Snippets int
}

// Composer is safe for concurrent use.
type Composer struct {
	translator  ai.Translator
	parallelism int
}

func NewComposer(tr ai.Translator) *Composer {
	if tr == nil {
		tr = ai.NoopTranslator{}
	}
	return &Composer{translator: tr, parallelism: 4}
}

type composeFunc func(c *Composer, ctx context.Context, r *render) string

// composers must hold an entry for every domain.Category.
var composers = map[domain.Category]composeFunc{
	domain.CategoryNews:    (*Composer).composeArticles,
	domain.CategoryMemes:   (*Composer).composeMemes,
	domain.CategoryVideos:  (*Composer).composeVideos,
	domain.CategoryWeather: (*Composer).composeWeather,
	domain.CategorySports:  (*Composer).composeArticles,
	domain.CategorySocial:  (*Composer).composeSocial,
}

// render carries the per-call state shared by the category composers.
type render struct {
	category domain.Category
	content  domain.Content
	lang     domain.Language
	mode     Mode
	loc      labels
	items    []domain.Item
}

// Compose renders content for category. It never fails: translation errors
// keep the original text, and empty content produces a short notice.
func (c *Composer) Compose(ctx context.Context, category domain.Category, content domain.Content, lang domain.Language, mode Mode) Digest {
	if lang == "" {
		lang = domain.DefaultLanguage
	}
	r := &render{
		category: category,
		content:  content,
		lang:     lang,
		mode:     mode,
		loc:      localeFor(lang),
		items:    content.Items,
	}
	if limit := Limit(category, mode); len(r.items) > limit {
		r.items = r.items[:limit]
	}

	d := Digest{
		Category: category,
		Options: domain.FormatOptions{
			ParseMode:             "HTML",
			DisableWebPagePreview: category != domain.CategoryNews && category != domain.CategoryMemes,
		},
	}

	fn, ok := composers[category]
	if !ok {
		d.Text = c.header(r) + "\n\n" + esc(r.loc.empty)
		return d
	}

	body := fn(c, ctx, r)
	if body == "" {
		body = esc(r.loc.empty)
	} else if category == domain.CategoryWeather {
		d.Snippets = 1
	} else {
		d.Snippets = len(r.items)
	}
	d.Text = c.header(r) + "\n\n" + body
	return d
}

func (c *Composer) header(r *render) string {
	if r.mode.Scheduled() {
		pattern := r.loc.daily
		if r.mode == ModeWeekly {
			pattern = r.loc.weekly
		}
		subject := r.loc.subject[r.category]
		if subject == "" {
			subject = string(r.category)
		}
		return fmt.Sprintf("🔔 <b>%s</b> %s", esc(fmt.Sprintf(pattern, subject)), r.category.Emoji())
	}

	title := r.loc.title[r.category]
	if title == "" {
		title = string(r.category)
	}
	if r.category == domain.CategoryWeather {
		city := "Addis Ababa"
		if r.content.Weather != nil && r.content.Weather.City != "" {
			city = r.content.Weather.City
		}
		title = fmt.Sprintf(title, city)
	}
	return fmt.Sprintf("%s <b>%s</b>", r.category.Emoji(), esc(title))
}

func (c *Composer) composeArticles(ctx context.Context, r *render) string {
	texts := make([]string, 0, 2*len(r.items))
	for _, it := range r.items {
		texts = append(texts, it.Title, it.Description)
	}
	texts = c.translateAll(ctx, texts, r.lang)

	var b strings.Builder
	for i, it := range r.items {
		title, desc := texts[2*i], texts[2*i+1]
		fmt.Fprintf(&b, "<b>%s</b>\n", esc(title))
		if desc != "" {
			fmt.Fprintf(&b, "%s\n", esc(desc))
		}
		if it.URL != "" && r.category == domain.CategoryNews {
			fmt.Fprintf(&b, "%s\n", link(it.URL, r.loc.readMore))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Composer) composeMemes(ctx context.Context, r *render) string {
	texts := make([]string, 0, len(r.items))
	for _, it := range r.items {
		texts = append(texts, it.Title)
	}
	texts = c.translateAll(ctx, texts, r.lang)

	var b strings.Builder
	for i, it := range r.items {
		fmt.Fprintf(&b, "😂 %s\n", esc(texts[i]))
		if it.ImageURL != "" {
			fmt.Fprintf(&b, "%s\n", link(it.ImageURL, r.loc.viewMeme))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Composer) composeVideos(ctx context.Context, r *render) string {
	texts := make([]string, 0, len(r.items))
	for _, it := range r.items {
		texts = append(texts, it.Title)
	}
	texts = c.translateAll(ctx, texts, r.lang)

	var b strings.Builder
	for i, it := range r.items {
		fmt.Fprintf(&b, "<b>%s</b>\n", esc(texts[i]))
		if it.URL != "" {
			fmt.Fprintf(&b, "%s\n", link(it.URL, r.loc.watchVideo))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Composer) composeWeather(ctx context.Context, r *render) string {
	w := r.content.Weather
	if w == nil {
		return ""
	}
	condition := c.translateAll(ctx, []string{w.Condition}, r.lang)[0]

	return fmt.Sprintf("🌡️ %s: %d°C\n🌤️ %s: %s\n💧 %s: %d%%\n💨 %s: %d km/h",
		esc(r.loc.temperature), w.Temperature,
		esc(r.loc.condition), esc(condition),
		esc(r.loc.humidity), w.Humidity,
		esc(r.loc.wind), w.WindSpeed,
	)
}

func (c *Composer) composeSocial(ctx context.Context, r *render) string {
	texts := make([]string, 0, len(r.items))
	for _, it := range r.items {
		texts = append(texts, it.Title)
	}
	texts = c.translateAll(ctx, texts, r.lang)

	var b strings.Builder
	for i, it := range r.items {
		topic := esc(texts[i])
		if it.URL != "" {
			topic = fmt.Sprintf(`<a href="%s">%s</a>`, esc(it.URL), topic)
		}
		fmt.Fprintf(&b, "• %s (%d)\n", topic, it.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

// translateAll translates texts concurrently, keeping their order. The
// default language is returned untouched.
func (c *Composer) translateAll(ctx context.Context, texts []string, lang domain.Language) []string {
	if lang.IsDefault() || len(texts) == 0 {
		return texts
	}

	out := make([]string, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, text := range texts {
		if text == "" {
			continue
		}
		g.Go(func() error {
			out[i] = c.translator.Translate(gctx, text, domain.DefaultLanguage, lang)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func esc(s string) string {
	return html.EscapeString(s)
}

func link(url, label string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, esc(url), esc(label))
}

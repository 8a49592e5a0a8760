// Package fraud scores PDF metadata dates against a document's declared emission date.
package fraud

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hatsunemiku3939/underwriter/types"
)

// Config holds the scorer thresholds.
type Config struct {
	MaxScore               int
	BlockThreshold         int
	MaxDaysAfterEmission   int
	AlertDaysAfterEmission int
	MaxEditIntervalHours   float64
	OldDocumentDays        int
	RecentFileDays         int
	ToleranceHoursBefore   float64
}

// DefaultConfig returns the thresholds used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxScore:               100,
		BlockThreshold:         40,
		MaxDaysAfterEmission:   60,
		AlertDaysAfterEmission: 30,
		MaxEditIntervalHours:   48,
		OldDocumentDays:        90,
		RecentFileDays:         7,
		ToleranceHoursBefore:   72,
	}
}

// Option adjusts one threshold.
type Option func(*Config)

func WithMaxScore(n int) Option                 { return func(c *Config) { c.MaxScore = n } }
func WithBlockThreshold(n int) Option           { return func(c *Config) { c.BlockThreshold = n } }
func WithMaxDaysAfterEmission(n int) Option     { return func(c *Config) { c.MaxDaysAfterEmission = n } }
func WithAlertDaysAfterEmission(n int) Option   { return func(c *Config) { c.AlertDaysAfterEmission = n } }
func WithMaxEditIntervalHours(h float64) Option { return func(c *Config) { c.MaxEditIntervalHours = h } }
func WithOldDocumentDays(n int) Option          { return func(c *Config) { c.OldDocumentDays = n } }
func WithRecentFileDays(n int) Option           { return func(c *Config) { c.RecentFileDays = n } }
func WithToleranceHoursBefore(h float64) Option { return func(c *Config) { c.ToleranceHoursBefore = h } }

// Rule identifies the heuristic that raised a finding.
type Rule string

const (
	RuleMissingEmission        Rule = "missing_emission"
	RuleCreatedBeforeEmission  Rule = "created_before_emission"
	RuleCreatedLongAfter       Rule = "created_long_after_emission"
	RuleCreatedAfter           Rule = "created_after_emission"
	RuleModifiedBeforeEmission Rule = "modified_before_emission"
	RuleLongEditInterval       Rule = "long_edit_interval"
	RuleOldDocumentNewFile     Rule = "old_document_new_file"
	RuleEmissionInFuture       Rule = "emission_in_future"
	RuleCreationInFuture       Rule = "creation_in_future"
	RuleModifiedBeforeCreated  Rule = "modified_before_created"
	RuleMissingCreation        Rule = "missing_creation"
	RuleEncrypted              Rule = "encrypted"
	RuleUndersized             Rule = "undersized"
	RuleNoPages                Rule = "no_pages"
	RuleMissingProperties      Rule = "missing_properties"
)

// Finding is one raised heuristic with its weight.
type Finding struct {
	Rule    Rule
	Message string
	Weight  int
}

// Metadata is the PDF metadata written by the extraction pipeline.
type Metadata struct {
	Bucket       string
	Key          string
	Size         int64
	Pages        int
	Encrypted    bool
	Title        string
	Author       string
	Subject      string
	Creator      string
	Producer     string
	Keywords     string
	CreationDate string
	ModDate      string
}

// MetadataFromRecord reads metadata from its record form. Both the PDF info dictionary keys
// (CreationDate) and their camel-cased variants (creationDate) are accepted.
func MetadataFromRecord(r types.Record) Metadata {
	str := func(keys ...string) string {
		for _, k := range keys {
			if v := r.String(k); v != "" {
				return v
			}
		}
		return ""
	}
	size, _ := r.Int("size_file")
	pages, _ := r.Int("num_pages")
	return Metadata{
		Bucket:       str("bucket"),
		Key:          str("key"),
		Size:         int64(size),
		Pages:        pages,
		Encrypted:    r.Bool("is_encrypted"),
		Title:        str("Title", "title"),
		Author:       str("Author", "author"),
		Subject:      str("Subject", "subject"),
		Creator:      str("Creator", "creator"),
		Producer:     str("Producer", "producer"),
		Keywords:     str("Keywords", "keywords"),
		CreationDate: str("CreationDate", "creationDate"),
		ModDate:      str("ModDate", "modDate"),
	}
}

// Report is the outcome of one evaluation.
type Report struct {
	Approved    bool
	Score       int
	Findings    []Finding
	Reason      string
	Details     map[string]any
	EvaluatedAt time.Time
}

// Alerts returns the finding messages in the order they were raised.
func (r Report) Alerts() []string {
	out := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Message)
	}
	return out
}

// Summary renders the report as the short text stored with the check result.
func (r Report) Summary() string {
	var b strings.Builder
	if r.Approved {
		b.WriteString("VALIDAÇÃO DE METADADOS APROVADA")
	} else {
		b.WriteString("VALIDAÇÃO REPROVADA: " + r.Reason)
	}
	fmt.Fprintf(&b, " | Score de suspeita: %d/100", r.Score)
	for i, a := range r.Alerts() {
		fmt.Fprintf(&b, " | %d. %s", i+1, a)
	}
	return b.String()
}

// Scorer evaluates PDF metadata. It is safe for concurrent use; thresholds change only
// through Configure.
type Scorer struct {
	mu  sync.RWMutex
	cfg Config
	now func() time.Time
}

// New returns a scorer with DefaultConfig adjusted by opts.
func New(opts ...Option) *Scorer {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Scorer{cfg: cfg, now: time.Now}
}

// WithClock replaces the time source used for "now".
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Configure adjusts thresholds in place.
func (s *Scorer) Configure(opts ...Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range opts {
		o(&s.cfg)
	}
}

// Config returns a copy of the current thresholds.
func (s *Scorer) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

const timestampLayout = "2006-01-02 15:04:05"

type evaluation struct {
	cfg      Config
	now      time.Time
	findings []Finding
	details  map[string]any
}

func (e *evaluation) raise(rule Rule, weight int, format string, args ...any) {
	e.findings = append(e.findings, Finding{Rule: rule, Message: fmt.Sprintf(format, args...), Weight: weight})
}

// Evaluate scores meta against the declared emission date.
func (s *Scorer) Evaluate(meta Metadata, emission string) Report {
	s.mu.RLock()
	e := &evaluation{cfg: s.cfg, now: s.now().UTC(), details: map[string]any{}}
	s.mu.RUnlock()

	e.details["arquivo_info"] = map[string]any{
		"bucket":       meta.Bucket,
		"key":          meta.Key,
		"size_file":    meta.Size,
		"num_pages":    meta.Pages,
		"is_encrypted": meta.Encrypted,
	}

	created, hasCreated := Parse(meta.CreationDate)
	modified, hasModified := Parse(meta.ModDate)

	if issued, ok := Parse(emission); ok {
		e.checkEmission(issued, created, hasCreated, modified, hasModified)
	} else {
		e.raise(RuleMissingEmission, 5, "Data de emissão do documento não fornecida ou inválida")
	}
	e.checkConsistency(created, hasCreated, modified, hasModified)
	e.checkFile(meta)

	score := 0
	for _, f := range e.findings {
		score += f.Weight
	}
	score = max(0, min(e.cfg.MaxScore, score))

	report := Report{
		Approved:    true,
		Score:       score,
		Findings:    e.findings,
		Details:     e.details,
		EvaluatedAt: e.now,
	}
	switch {
	case score >= e.cfg.BlockThreshold:
		report.Approved = false
		report.Reason = fmt.Sprintf("Score de suspeita alto: %d", score)
	case e.has(RuleCreatedBeforeEmission, RuleModifiedBeforeEmission):
		report.Approved = false
		report.Reason = "Data de criação/modificação anterior à emissão do documento"
	case e.has(RuleModifiedBeforeCreated):
		report.Approved = false
		report.Reason = "Inconsistência nas datas internas do PDF"
	case e.has(RuleEmissionInFuture, RuleCreationInFuture):
		report.Approved = false
		report.Reason = "Datas no futuro detectadas"
	}
	return report
}

func (e *evaluation) has(rules ...Rule) bool {
	for _, f := range e.findings {
		for _, r := range rules {
			if f.Rule == r {
				return true
			}
		}
	}
	return false
}

func (e *evaluation) checkEmission(issued, created time.Time, hasCreated bool, modified time.Time, hasModified bool) {
	cfg := e.cfg
	e.details["data_emissao_documento"] = issued.Format(timestampLayout)
	if hasCreated {
		e.details["data_criacao_pdf"] = created.Format(timestampLayout)
	}
	if hasModified {
		e.details["data_modificacao_pdf"] = modified.Format(timestampLayout)
	}

	if hasCreated {
		hours := issued.Sub(created).Hours()
		if hours > cfg.ToleranceHoursBefore {
			e.raise(RuleCreatedBeforeEmission, 60,
				"PDF criado %.1f dias (%.1f horas) ANTES da emissão do documento", hours/24, hours)
		}
		if created.After(issued) {
			days := calendarDays(issued, created)
			switch {
			case days > cfg.MaxDaysAfterEmission:
				e.raise(RuleCreatedLongAfter, 25,
					"PDF criado %d dias após emissão do documento (limite: %d dias)", days, cfg.MaxDaysAfterEmission)
			case days > cfg.AlertDaysAfterEmission:
				e.raise(RuleCreatedAfter, 10,
					"PDF criado %d dias após emissão (atenção - limite alerta: %d dias)", days, cfg.AlertDaysAfterEmission)
			}
		}
	}

	if hasModified {
		hours := issued.Sub(modified).Hours()
		if hours > cfg.ToleranceHoursBefore {
			e.raise(RuleModifiedBeforeEmission, 55,
				"PDF modificado %.1f dias (%.1f horas) ANTES da emissão", hours/24, hours)
		}
	}

	if hasCreated && hasModified {
		hours := math.Abs(modified.Sub(created).Hours())
		if hours > cfg.MaxEditIntervalHours {
			e.raise(RuleLongEditInterval, 15,
				"Grande intervalo entre criação e modificação: %.1f dias (%.1f horas) - limite: %g horas",
				hours/24, hours, cfg.MaxEditIntervalHours)
		}
	}

	if hasCreated {
		docAge := floorDays(e.now.Sub(issued))
		fileAge := floorDays(e.now.Sub(created))
		if docAge > cfg.OldDocumentDays && fileAge < cfg.RecentFileDays {
			e.raise(RuleOldDocumentNewFile, 30,
				"Documento de %d dias com PDF criado há %d dias (limites: doc>%d dias, PDF<%d dias)",
				docAge, fileAge, cfg.OldDocumentDays, cfg.RecentFileDays)
		}
	}

	if issued.After(e.now) {
		e.raise(RuleEmissionInFuture, 40,
			"Data de emissão do documento está %d dias no futuro", floorDays(issued.Sub(e.now)))
	}
	if hasCreated && created.After(e.now.Add(time.Hour)) {
		e.raise(RuleCreationInFuture, 35,
			"Data de criação do PDF está %d dias no futuro", floorDays(created.Sub(e.now)))
	}
}

func (e *evaluation) checkConsistency(created time.Time, hasCreated bool, modified time.Time, hasModified bool) {
	if hasCreated && hasModified && modified.Before(created) {
		e.raise(RuleModifiedBeforeCreated, 50, "PDF modificado antes de ser criado")
		e.details["modificacao_antes_criacao"] = true
	}
	if !hasCreated {
		e.raise(RuleMissingCreation, 15, "Data de criação do PDF ausente")
	}
}

func (e *evaluation) checkFile(meta Metadata) {
	if meta.Encrypted {
		e.raise(RuleEncrypted, 20, "PDF está criptografado")
	}
	if meta.Size < 1000 {
		e.raise(RuleUndersized, 15, "Arquivo muito pequeno: %d bytes", meta.Size)
	}
	if meta.Pages == 0 {
		e.raise(RuleNoPages, 25, "PDF sem páginas")
	}

	var missing []string
	for _, p := range []struct{ name, value string }{
		{"title", meta.Title}, {"author", meta.Author}, {"creator", meta.Creator}, {"producer", meta.Producer},
	} {
		if p.value == "" || p.value == "None" {
			missing = append(missing, p.name)
		}
	}
	if len(missing) >= 3 {
		e.raise(RuleMissingProperties, 10, "Muitos metadados ausentes: %s", strings.Join(missing, ", "))
		e.details["metadados_ausentes"] = missing
	}
}

// calendarDays counts whole calendar days from a to b, ignoring the time of day.
func calendarDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func floorDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}

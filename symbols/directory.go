// Package symbols maintains the directory of tradable symbols used to resolve
// free-text queries before a purchase.
package symbols

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"portfolio-tracker/config"
	"portfolio-tracker/models"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/repository"
)

// NSE listings block clients without a browser-like user agent.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) portfolio-tracker"

// ParseNSE reads the NSE EQUITY_L.csv listing. suffix is appended to every
// ticker (".NS" for Yahoo-style symbols).
func ParseNSE(r io.Reader, suffix string) ([]models.Symbol, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	symbolCol, ok := col["SYMBOL"]
	if !ok {
		return nil, errors.New("missing SYMBOL column")
	}
	nameCol, ok := col["NAME OF COMPANY"]
	if !ok {
		return nil, errors.New("missing NAME OF COMPANY column")
	}
	seriesCol, hasSeries := col["SERIES"]
	listedCol, hasListed := col["DATE OF LISTING"]

	field := func(rec []string, i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	seen := make(map[string]struct{})
	var out []models.Symbol
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read listing: %w", err)
		}

		ticker := strings.ToUpper(field(rec, symbolCol))
		if ticker == "" {
			continue
		}
		symbol := ticker + suffix
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}

		s := models.Symbol{
			Symbol:      symbol,
			CompanyName: field(rec, nameCol),
		}
		if hasSeries {
			s.Series = field(rec, seriesCol)
		}
		if hasListed {
			s.ListedOn = field(rec, listedCol)
		}
		out = append(out, s)
	}
	return out, nil
}

// Syncer refreshes the stored directory from the published listing.
type Syncer struct {
	repo       repository.SymbolRepository
	httpClient *http.Client
	sourceURL  string
	suffix     string
	log        *logger.Logger
}

func NewSyncer(cfg config.Symbols, repo repository.SymbolRepository, log *logger.Logger) *Syncer {
	return &Syncer{
		repo:       repo,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sourceURL:  cfg.SourceURL,
		suffix:     cfg.Suffix,
		log:        log,
	}
}

// Sync downloads and stores the listing, returning the number of symbols.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sourceURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/csv,*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download listing: status %d", resp.StatusCode)
	}

	list, err := ParseNSE(resp.Body, s.suffix)
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		// Keep the current directory rather than wiping it.
		return 0, errors.New("listing is empty")
	}

	if err := s.repo.ReplaceAll(ctx, list); err != nil {
		return 0, err
	}

	s.log.Info("Symbol directory synced", logger.IntField("count", len(list)), logger.StringField("source", s.sourceURL))
	return len(list), nil
}

// Package factcheck verifies cited claims: a referee fetches each
// citation URL, asks the platform LLM whether the quote matches the page
// and whether the claim follows from the evidence, and a background
// worker drains the durable request queue.
package factcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/agonai/agon/pkg/llm"
	"github.com/agonai/agon/pkg/models"
)

const (
	defaultFetchTimeout = 5 * time.Second
	maxRedirects        = 2

	// pageContentLimit caps how much of a fetched page is retained;
	// promptContentLimit caps how much of that reaches the model.
	pageContentLimit   = 5000
	promptContentLimit = 3000
)

const contentMatchPrompt = `You are a fact-checking assistant. Compare the following quote attributed to a source with the actual page content.

Claimed quote: "%s"

Actual page content (truncated):
%s

Does the page content support or contain the claimed quote? Answer with a JSON object:
{"match": true/false, "explanation": "brief reason"}

Respond ONLY with the JSON object, no other text.`

const logicCheckPrompt = `You are a fact-checking assistant. Evaluate whether the following claim logically follows from the cited evidence.

Claim: "%s"

Citations and evidence:
%s

Does the claim logically follow from the cited evidence? Answer with a JSON object:
{"valid": true/false, "explanation": "brief reason"}

Respond ONLY with the JSON object, no other text.`

// Verification is the referee's aggregate judgment over all citations.
type Verification struct {
	Verdict            models.Verdict
	CitationURL        string
	CitationAccessible bool
	ContentMatch       bool
	LogicValid         bool
	Details            models.FactcheckDetails
}

// Referee verifies claims against their citations.
type Referee struct {
	llm   llm.Client
	model string
	http  *http.Client
}

// NewReferee creates a referee using the given model for content-match
// and logic checks. fetchTimeout bounds each citation fetch, defaulting
// to 5s when zero; redirects are followed at most twice.
func NewReferee(client llm.Client, model string, fetchTimeout time.Duration) *Referee {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Referee{
		llm:   client,
		model: model,
		http: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// VerifyClaim runs the full verification pipeline. The verdict lattice:
// any inaccessible source wins, then any quote mismatch, then verified
// when everything holds, otherwise inconclusive.
func (r *Referee) VerifyClaim(ctx context.Context, claim string, citations []models.Citation) *Verification {
	var (
		results       []models.CitationCheck
		evidence      []string
		allAccessible = true
		allMatch      = true
	)

	for _, citation := range citations {
		content, accessible := r.fetchPage(ctx, citation.URL)
		if !accessible {
			allAccessible = false
			results = append(results, models.CitationCheck{
				URL:         citation.URL,
				Title:       citation.Title,
				Accessible:  false,
				Explanation: "Source URL could not be accessed",
			})
			continue
		}

		match, explanation := r.checkContentMatch(ctx, citation.Quote, content)
		if !match {
			allMatch = false
		}

		evidence = append(evidence, fmt.Sprintf("[%s] (%s): %s", citation.Title, citation.URL, citation.Quote))
		matchCopy := match
		results = append(results, models.CitationCheck{
			URL:          citation.URL,
			Title:        citation.Title,
			Accessible:   true,
			ContentMatch: &matchCopy,
			Explanation:  explanation,
		})
	}

	logicValid := false
	logicExplanation := ""
	if len(evidence) > 0 {
		logicValid, logicExplanation = r.checkLogic(ctx, claim, evidence)
	}

	verdict := models.VerdictInconclusive
	switch {
	case !allAccessible:
		verdict = models.VerdictSourceInaccessible
	case !allMatch:
		verdict = models.VerdictSourceMismatch
	case logicValid:
		verdict = models.VerdictVerified
	}

	firstURL := ""
	if len(citations) > 0 {
		firstURL = citations[0].URL
	}

	return &Verification{
		Verdict:            verdict,
		CitationURL:        firstURL,
		CitationAccessible: allAccessible,
		ContentMatch:       allMatch,
		LogicValid:         logicValid,
		Details: models.FactcheckDetails{
			CitationResults:  results,
			LogicExplanation: logicExplanation,
		},
	}
}

// fetchPage retrieves a citation URL. Only a 200 counts as accessible.
func (r *Referee) fetchPage(ctx context.Context, url string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("Invalid citation URL", "url", url, "error", err)
		return "", false
	}
	resp, err := r.http.Do(req)
	if err != nil {
		slog.Warn("Failed to fetch citation URL", "url", url, "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, pageContentLimit))
	if err != nil {
		slog.Warn("Failed to read citation page", "url", url, "error", err)
		return "", false
	}
	return string(body), true
}

// checkContentMatch asks the model whether the page supports the quote.
// An empty quote or page cannot match; analysis failures count as a
// mismatch with an explanation.
func (r *Referee) checkContentMatch(ctx context.Context, quote, content string) (bool, string) {
	if quote == "" || content == "" {
		return false, ""
	}
	if len(content) > promptContentLimit {
		content = content[:promptContentLimit]
	}

	var parsed struct {
		Match       bool   `json:"match"`
		Explanation string `json:"explanation"`
	}
	if err := r.askJSON(ctx, fmt.Sprintf(contentMatchPrompt, quote, content), &parsed); err != nil {
		slog.Warn("Content match check failed", "error", err)
		return false, "Analysis failed"
	}
	return parsed.Match, parsed.Explanation
}

// checkLogic asks the model whether the claim follows from the evidence.
func (r *Referee) checkLogic(ctx context.Context, claim string, evidence []string) (bool, string) {
	var parsed struct {
		Valid       bool   `json:"valid"`
		Explanation string `json:"explanation"`
	}
	prompt := fmt.Sprintf(logicCheckPrompt, claim, strings.Join(evidence, "\n"))
	if err := r.askJSON(ctx, prompt, &parsed); err != nil {
		slog.Warn("Logic check failed", "error", err)
		return false, "Analysis failed"
	}
	return parsed.Valid, parsed.Explanation
}

// askJSON sends one prompt and decodes the JSON reply, repairing the
// usual model JSON slips first.
func (r *Referee) askJSON(ctx context.Context, prompt string, v any) error {
	raw, err := r.llm.Complete(ctx, llm.Request{
		Model:     r.model,
		Prompt:    prompt,
		MaxTokens: 200,
	})
	if err != nil {
		return err
	}
	repaired, err := jsonrepair.RepairJSON(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("repairing referee response: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decoding referee response: %w", err)
	}
	return nil
}

package providers

import (
	"context"
	"fmt"
	"strings"
)

// FailoverLLM presents the manager's LLM chain as a single provider. Each
// call walks the preferred order until one provider returns a non-empty
// response.
type FailoverLLM struct {
	m *Manager
}

func NewFailoverLLM(m *Manager) *FailoverLLM {
	return &FailoverLLM{m: m}
}

func (f *FailoverLLM) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var (
		lastInfo ProviderInfo
		lastErr  error
	)
	for _, idx := range f.m.PreferredLLMOrder() {
		p, ref := f.m.LLMProviderByIndex(idx)
		resp, info, err := p.Generate(ctx, req)
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			info.Name = ref.Name
			return resp, info, nil
		}
		lastInfo = info
		if err != nil {
			lastErr = err
			// A context-length rejection will repeat on every provider.
			if ClassifyError(err) == ErrorContext {
				break
			}
		} else {
			lastErr = fmt.Errorf("provider %s returned empty response", ref.Name)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no llm providers configured")
	}
	return GenerateResponse{}, lastInfo, fmt.Errorf("llm providers unavailable: %w", lastErr)
}

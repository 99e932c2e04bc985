package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const azureOutputFormat = "raw-24khz-16bit-mono-pcm"

// AzureConfig configures the Azure Speech REST endpoint.
type AzureConfig struct {
	SubscriptionKey string `yaml:"-"`
	Region          string `yaml:"region"`
	// Endpoint overrides the regional endpoint.
	Endpoint string `yaml:"endpoint"`
}

// AzureProvider synthesizes SSML through Azure's REST API. Voice names come
// from the catalog, which uses Azure neural voice ids.
type AzureProvider struct {
	cfg        AzureConfig
	catalog    *Catalog
	httpClient *http.Client
}

// NewAzureProvider creates the provider. The key and either region or
// endpoint are required.
func NewAzureProvider(cfg AzureConfig, catalog *Catalog) (*AzureProvider, error) {
	if cfg.SubscriptionKey == "" {
		return nil, errors.New("Azure speech key is required")
	}
	if cfg.Endpoint == "" {
		if cfg.Region == "" {
			return nil, errors.New("Azure speech region is required")
		}
		cfg.Endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &AzureProvider{
		cfg:        cfg,
		catalog:    catalog,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

func (p *AzureProvider) Name() string { return "azure" }

func (p *AzureProvider) Load(ctx context.Context) error { return nil }

// Synthesize implements Synthesizer.
func (p *AzureProvider) Synthesize(ctx context.Context, text, voice, lang string) ([]byte, error) {
	name := p.catalog.Lookup(lang, voice)
	ssml, err := buildSSML(name, text)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.SubscriptionKey)
	req.Header.Set("User-Agent", "interpreter")

	return doAudioRequest(p.httpClient, req)
}

// buildSSML wraps text for voiceName. xml:lang is the voice's locale prefix
// ("th-TH" for "th-TH-PremwadeeNeural").
func buildSSML(voiceName, text string) (string, error) {
	locale := voiceName
	if parts := strings.SplitN(voiceName, "-", 3); len(parts) == 3 {
		locale = parts[0] + "-" + parts[1]
	}

	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return "", fmt.Errorf("failed to escape text: %w", err)
	}

	return fmt.Sprintf(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s"><voice name="%s">%s</voice></speak>`,
		locale, voiceName, escaped.String()), nil
}

var _ Synthesizer = (*AzureProvider)(nil)

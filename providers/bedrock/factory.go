package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/cortexflow/llmkit/capability"
	"github.com/cortexflow/llmkit/llmconfig"
	"github.com/cortexflow/llmkit/registry"
)

// ProviderID is the registry key for this adapter.
const ProviderID = "bedrock"

type factory struct{}

// Factory is the package-level registry.Factory singleton, registered into
// registry.Default by the llmkit umbrella package.
var Factory registry.Factory = factory{}

func (factory) ProviderID() string  { return ProviderID }
func (factory) DisplayName() string { return "AWS Bedrock" }

func (factory) SupportedCapabilities() []registry.CapabilityKind {
	return []registry.CapabilityKind{registry.CapabilityChat}
}

func (factory) Validate(cfg llmconfig.Config) error {
	if cfg.Model == "" {
		return fmt.Errorf("bedrock: model is required")
	}
	return nil
}

func (factory) Defaults() llmconfig.Config {
	return llmconfig.Config{Model: "anthropic.claude-sonnet-4-5-20250929-v1:0"}
}

// Create builds the AWS SDK config from the environment/shared credential
// chain (region overridden via cfg.ProviderOption("bedrock", "region") when
// set) and constructs a bedrockruntime.Client. Bedrock has no API-key
// concept: authentication is delegated entirely to the AWS SDK's default
// credential chain, so cfg.APIKey is unused here.
func (factory) Create(cfg llmconfig.Config) (registry.Provider, error) {
	ctx := context.Background()
	var optFns []func(*awsconfig.LoadOptions) error
	if region, ok := cfg.ProviderOption("bedrock", "region"); ok {
		if regionStr, ok := region.(string); ok && regionStr != "" {
			optFns = append(optFns, awsconfig.WithRegion(regionStr))
		}
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return registry.Provider{}, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	if cfg.BaseURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.BaseURL)
	}
	runtime := bedrockruntime.NewFromConfig(awsCfg)
	client, err := New(runtime, Options{Model: cfg.Model})
	if err != nil {
		return registry.Provider{}, err
	}
	var chat capability.ChatCapability = client
	return registry.Provider{Chat: chat}, nil
}

package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/detectext/detectext/internal/config"
	"github.com/rs/zerolog/log"
)

// RekognitionClient is the slice of the Rekognition API this adapter uses.
type RekognitionClient interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// AmazonProvider detects text via AWS Rekognition.
type AmazonProvider struct {
	client RekognitionClient
}

// NewAmazonProvider creates a Rekognition-backed provider. Static keys from
// configuration win; without them the SDK default chain (environment,
// shared config, IAM role) supplies credentials.
func NewAmazonProvider(cfg *config.AmazonConfig) *AmazonProvider {
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsConfig := aws.Config{
			Region: cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			),
		}
		return &AmazonProvider{
			client: rekognition.NewFromConfig(awsConfig),
		}
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		// Calls will fail with a credentials error; keep the provider usable
		// so the other engines still work
		log.Warn().Err(err).Msg("Failed to load AWS default config for Rekognition")
		awsConfig = aws.Config{Region: cfg.Region}
	}

	return &AmazonProvider{
		client: rekognition.NewFromConfig(awsConfig),
	}
}

// NewAmazonProviderWithClient creates a provider with an explicit client.
func NewAmazonProviderWithClient(client RekognitionClient) *AmazonProvider {
	return &AmazonProvider{client: client}
}

// Name returns the provider name
func (p *AmazonProvider) Name() ProviderName {
	return ProviderAmazon
}

// Detect runs Rekognition DetectText on the raw image bytes. Rekognition
// returns both LINE and WORD detections for the same text; only WORD-level
// entries are kept so lines are not counted twice.
func (p *AmazonProvider) Detect(ctx context.Context, image []byte) (string, error) {
	output, err := p.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{
			Bytes: image,
		},
	})
	if err != nil {
		return "", fmt.Errorf("rekognition detect text: %w", err)
	}

	var words []string
	for _, detection := range output.TextDetections {
		if detection.Type == types.TextTypesWord {
			words = append(words, aws.ToString(detection.DetectedText))
		}
	}

	return strings.TrimSpace(strings.Join(words, " ")), nil
}

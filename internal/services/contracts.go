package services

import (
	"context"
	"errors"

	"github.com/plainclause/contract-analyzer-api/internal/analyzer"
	"github.com/plainclause/contract-analyzer-api/internal/extractor"
	"github.com/plainclause/contract-analyzer-api/internal/models"
	"github.com/plainclause/contract-analyzer-api/internal/utils"
)

type ContractService interface {
	AnalyzeContract(ctx context.Context, req *models.UploadRequest) (*models.AnalysisResult, error)
}

type contractService struct {
	analyzer analyzer.Analyzer
	logger   *utils.Logger
}

func NewService(llmAnalyzer analyzer.Analyzer, logger *utils.Logger) ContractService {
	return &contractService{
		analyzer: llmAnalyzer,
		logger:   logger,
	}
}

// AnalyzeContract runs the pipeline for one upload: extract text, analyze it,
// build the response. This is the single place where stage errors get mapped
// to HTTP statuses and sanitized messages.
func (s *contractService) AnalyzeContract(ctx context.Context, req *models.UploadRequest) (*models.AnalysisResult, error) {
	text, err := extractor.ExtractPDF(req.File)
	if err != nil {
		if errors.Is(err, extractor.ErrNoText) {
			s.logger.Warn("No text extracted from PDF", "filename", req.Filename)
			return nil, utils.NewUnprocessableError("Could not extract text from the PDF. It might be empty, image-based, or corrupted.")
		}
		s.logger.Warn("Failed to read PDF", "error", err, "filename", req.Filename)
		return nil, utils.NewUnprocessableError("Could not read the PDF. The file may be damaged or password-protected.")
	}

	s.logger.Info("Starting contract analysis", "filename", req.Filename, "text_length", len(text))

	analysis, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		s.logger.Error("Failed to analyze contract", "error", err, "filename", req.Filename)
		return nil, mapProviderError(err)
	}

	cons := analysis.Cons
	if cons == nil {
		cons = []string{}
	}

	s.logger.Info("Contract analyzed successfully",
		"filename", req.Filename,
		"summary_length", len(analysis.SimplifiedContract),
		"cons_count", len(cons))

	return &models.AnalysisResult{
		OriginalFilename:   req.Filename,
		SimplifiedContract: analysis.SimplifiedContract,
		Cons:               cons,
	}, nil
}

// mapProviderError picks the client-facing status and message for an analyzer
// failure. Provider detail stays in the logs.
func mapProviderError(err error) *utils.AppError {
	var provErr *analyzer.ProviderError
	if !errors.As(err, &provErr) {
		return utils.NewInternalError("Failed to analyze the contract.")
	}

	switch provErr.Kind {
	case analyzer.KindAuth:
		return utils.NewInternalError("The analysis service is not configured correctly.")
	case analyzer.KindRateLimited:
		return utils.NewUnavailableError("The analysis service is temporarily over capacity. Please try again shortly.")
	case analyzer.KindTimeout, analyzer.KindNetwork, analyzer.KindBadReply:
		return utils.NewBadGatewayError("The analysis service could not process the contract. Please try again.")
	default:
		return utils.NewInternalError("Failed to analyze the contract.")
	}
}

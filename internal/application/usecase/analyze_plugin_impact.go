package usecase

import (
	"context"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/repository"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

// AnalyzePluginImpactUseCase сравнивает показатели сайта до и после установки плагина.
// Это только сравнение средних, а не оценка причины изменений.
type AnalyzePluginImpactUseCase struct {
	measurements  repository.MeasurementRepository
	installations repository.InstallationRepository
	analyzer      *service.ImpactAnalyzer
	logger        *logger.Logger
}

// NewAnalyzePluginImpactUseCase создает новый use case
func NewAnalyzePluginImpactUseCase(
	measurements repository.MeasurementRepository,
	installations repository.InstallationRepository,
	analyzer *service.ImpactAnalyzer,
	logger *logger.Logger,
) *AnalyzePluginImpactUseCase {
	return &AnalyzePluginImpactUseCase{
		measurements:  measurements,
		installations: installations,
		analyzer:      analyzer,
		logger:        logger,
	}
}

// Execute возвращает сравнение до/после для пары сайт-плагин.
// found=false, если в области нет записи об установке: это не то же самое, что нулевой эффект.
// При нескольких записях используется самая поздняя установка.
func (uc *AnalyzePluginImpactUseCase) Execute(
	ctx context.Context,
	scope valueobject.Scope,
	siteID, pluginID string,
) (*dto.BeforeAfterDTO, bool, error) {
	if err := scope.Validate(); err != nil {
		return nil, false, err
	}
	if siteID == "" || pluginID == "" {
		return nil, false, apperr.Invalid("site_id and plugin_id are required")
	}

	installs, err := uc.installations.FindByPair(ctx, scope, siteID, pluginID)
	if err != nil {
		uc.logger.Error("Failed to load installations", err, "site_id", siteID, "plugin_id", pluginID)
		return nil, false, err
	}

	inst := service.LatestInstallation(installs)
	if inst == nil {
		return nil, false, nil
	}

	measurements, err := uc.measurements.FindByInstallation(ctx, inst.ID())
	if err != nil {
		uc.logger.Error("Failed to load measurements", err, "installation_id", inst.ID())
		return nil, false, err
	}

	comparison := uc.analyzer.Compare(inst, measurements)
	uc.logger.Debug("Plugin impact compared",
		"installation_id", inst.ID(),
		"before", comparison.BeforeSamples,
		"after", comparison.AfterSamples,
	)

	return dto.FromComparison(siteID, pluginID, comparison), true, nil
}

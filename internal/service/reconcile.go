// reconcile.go — сервис сверки файловой системы с каталогом.
//
// Сверка сравнивает:
//   - Поддиректории contentDir со slug-ами записей каталога
//   - Архивы uploads ({slug}.h5p) со slug-ами записей каталога
//
// Директория или архив без записи каталога — сирота. Сироты моложе
// grace-интервала пропускаются: это может быть идущая распаковка,
// ещё не зарегистрированная в каталоге.
//
// Cleanup-операции удаляют найденных сирот. Scan и Cleanup защищены
// общим мьютексом: параллельная сверка отклоняется.
//
// При HUB_RECONCILE_INTERVAL > 0 сканирование запускается фоновой
// горутиной с периодическим тикером (только scan, без удаления).
package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/h5phub/internal/repository"
	"github.com/bigkaa/h5phub/internal/storage/uploadstore"
)

// Prometheus метрики сверки
var (
	// reconcileRunsTotal — количество запусков сверки.
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_reconcile_runs_total",
		Help: "Общее количество запусков сверки",
	})

	// reconcileOrphans — количество сирот, найденных последней сверкой.
	reconcileOrphans = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hub_reconcile_orphans",
		Help: "Количество сирот, найденных последней сверкой",
	}, []string{"kind"})

	// reconcileDeletedTotal — количество удалённых сирот.
	reconcileDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_reconcile_deleted_total",
		Help: "Общее количество удалённых сирот",
	}, []string{"kind"})

	// reconcileDurationSeconds — длительность выполнения сверки.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hub_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// ErrReconcileInProgress — сверка уже выполняется.
var ErrReconcileInProgress = errors.New("сверка уже выполняется")

// ContentScanReport — результат сканирования директорий контента.
type ContentScanReport struct {
	// Поддиректории без записи каталога
	OrphanedFolders []string `json:"orphanedFolders"`
	TotalOrphaned   int      `json:"totalOrphaned"`
	// Slug, подтверждённые каталогом
	ValidSlugs []string `json:"validSlugs"`
}

// CleanupReport — результат удаления сирот.
type CleanupReport struct {
	DeletedFolders []string `json:"deletedFolders"`
	DeletedCount   int      `json:"deletedCount"`
	Errors         []string `json:"errors"`
}

// UploadScanReport — результат сканирования директории загрузок.
type UploadScanReport struct {
	// Архивы без записи каталога
	OrphanedUploads []string `json:"orphanedUploads"`
	TotalOrphaned   int      `json:"totalOrphaned"`
	// Архивы, подтверждённые каталогом
	ValidUploads []string `json:"validUploads"`
}

// ReconcileService — сервис сверки файловой системы с каталогом.
type ReconcileService struct {
	contents   repository.ContentRepository
	uploads    *uploadstore.Store
	contentDir string
	interval   time.Duration
	grace      time.Duration
	logger     *slog.Logger

	// Подменяется в тестах для контроля grace-интервала
	now func() time.Time

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	contents repository.ContentRepository,
	uploads *uploadstore.Store,
	contentDir string,
	interval time.Duration,
	grace time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		contents:   contents,
		uploads:    uploads,
		contentDir: contentDir,
		interval:   interval,
		grace:      grace,
		logger:     logger.With(slog.String("component", "reconcile")),
		now:        time.Now,
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
// При interval = 0 фоновая сверка отключена.
func (rs *ReconcileService) Start(ctx context.Context) {
	if rs.interval <= 0 {
		rs.logger.Info("Фоновая сверка отключена")
		return
	}

	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel

	go rs.run(rsCtx)

	rs.logger.Info("Фоновая сверка запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает фоновой процесс сверки.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	rs.logger.Info("Фоновая сверка остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

// run — основной цикл фоновой горутины.
func (rs *ReconcileService) run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.runOnce(ctx)
		}
	}
}

// runOnce выполняет один фоновый цикл: сканирование контента и
// загрузок без удаления. Результаты попадают в метрики и лог.
func (rs *ReconcileService) runOnce(ctx context.Context) {
	contentReport, err := rs.ScanContent(ctx)
	if err != nil {
		if !errors.Is(err, ErrReconcileInProgress) {
			rs.logger.Error("Ошибка сверки контента", slog.String("error", err.Error()))
		}
		return
	}

	uploadReport, err := rs.ScanUploads(ctx)
	if err != nil {
		if !errors.Is(err, ErrReconcileInProgress) {
			rs.logger.Error("Ошибка сверки загрузок", slog.String("error", err.Error()))
		}
		return
	}

	if contentReport.TotalOrphaned > 0 || uploadReport.TotalOrphaned > 0 {
		rs.logger.Warn("Сверка обнаружила сирот",
			slog.Int("orphaned_folders", contentReport.TotalOrphaned),
			slog.Int("orphaned_uploads", uploadReport.TotalOrphaned),
		)
	}
}

// begin захватывает право на выполнение сверки.
func (rs *ReconcileService) begin() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.inProcess {
		return ErrReconcileInProgress
	}
	rs.inProcess = true
	return nil
}

// end освобождает право на выполнение сверки.
func (rs *ReconcileService) end() {
	rs.mu.Lock()
	rs.inProcess = false
	rs.mu.Unlock()
}

// ScanContent ищет поддиректории contentDir без записи каталога.
func (rs *ReconcileService) ScanContent(ctx context.Context) (*ContentScanReport, error) {
	if err := rs.begin(); err != nil {
		return nil, err
	}
	defer rs.end()

	start := time.Now()
	defer func() {
		reconcileRunsTotal.Inc()
		reconcileDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	report, err := rs.scanContent(ctx)
	if err != nil {
		return nil, err
	}

	reconcileOrphans.WithLabelValues("content").Set(float64(report.TotalOrphaned))
	rs.logger.Info("Сверка контента завершена",
		slog.Int("valid", len(report.ValidSlugs)),
		slog.Int("orphaned", report.TotalOrphaned),
	)
	return report, nil
}

// CleanupContent удаляет поддиректории contentDir без записи каталога.
func (rs *ReconcileService) CleanupContent(ctx context.Context) (*CleanupReport, error) {
	if err := rs.begin(); err != nil {
		return nil, err
	}
	defer rs.end()

	scan, err := rs.scanContent(ctx)
	if err != nil {
		return nil, err
	}

	report := &CleanupReport{
		DeletedFolders: []string{},
		Errors:         []string{},
	}
	for _, name := range scan.OrphanedFolders {
		if err := os.RemoveAll(filepath.Join(rs.contentDir, name)); err != nil {
			report.Errors = append(report.Errors, name+": "+err.Error())
			continue
		}
		report.DeletedFolders = append(report.DeletedFolders, name)
		report.DeletedCount++
		reconcileDeletedTotal.WithLabelValues("content").Inc()
	}

	rs.logger.Info("Очистка контента завершена",
		slog.Int("deleted", report.DeletedCount),
		slog.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// ScanUploads ищет архивы uploads без записи каталога.
func (rs *ReconcileService) ScanUploads(ctx context.Context) (*UploadScanReport, error) {
	if err := rs.begin(); err != nil {
		return nil, err
	}
	defer rs.end()

	report, err := rs.scanUploads(ctx)
	if err != nil {
		return nil, err
	}

	reconcileOrphans.WithLabelValues("upload").Set(float64(report.TotalOrphaned))
	rs.logger.Info("Сверка загрузок завершена",
		slog.Int("valid", len(report.ValidUploads)),
		slog.Int("orphaned", report.TotalOrphaned),
	)
	return report, nil
}

// CleanupUploads удаляет архивы uploads без записи каталога.
func (rs *ReconcileService) CleanupUploads(ctx context.Context) (*CleanupReport, error) {
	if err := rs.begin(); err != nil {
		return nil, err
	}
	defer rs.end()

	scan, err := rs.scanUploads(ctx)
	if err != nil {
		return nil, err
	}

	report := &CleanupReport{
		DeletedFolders: []string{},
		Errors:         []string{},
	}
	for _, name := range scan.OrphanedUploads {
		if err := rs.uploads.Delete(name); err != nil {
			report.Errors = append(report.Errors, name+": "+err.Error())
			continue
		}
		report.DeletedFolders = append(report.DeletedFolders, name)
		report.DeletedCount++
		reconcileDeletedTotal.WithLabelValues("upload").Inc()
	}

	rs.logger.Info("Очистка загрузок завершена",
		slog.Int("deleted", report.DeletedCount),
		slog.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// scanContent — сканирование без захвата мьютекса.
func (rs *ReconcileService) scanContent(ctx context.Context) (*ContentScanReport, error) {
	known, err := rs.knownSlugs(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(rs.contentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return &ContentScanReport{OrphanedFolders: []string{}, ValidSlugs: []string{}}, nil
		}
		return nil, err
	}

	report := &ContentScanReport{OrphanedFolders: []string{}, ValidSlugs: []string{}}
	cutoff := rs.now().Add(-rs.grace)
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if known[e.Name()] {
			report.ValidSlugs = append(report.ValidSlugs, e.Name())
			continue
		}

		// Свежая директория: возможно, идёт распаковка
		if info, infoErr := e.Info(); infoErr == nil && info.ModTime().After(cutoff) {
			continue
		}

		report.OrphanedFolders = append(report.OrphanedFolders, e.Name())
		report.TotalOrphaned++
	}
	return report, nil
}

// scanUploads — сканирование без захвата мьютекса.
func (rs *ReconcileService) scanUploads(ctx context.Context) (*UploadScanReport, error) {
	known, err := rs.knownSlugs(ctx)
	if err != nil {
		return nil, err
	}

	list, err := rs.uploads.List()
	if err != nil {
		return nil, err
	}

	report := &UploadScanReport{OrphanedUploads: []string{}, ValidUploads: []string{}}
	cutoff := rs.now().Add(-rs.grace)
	for _, u := range list {
		slug := strings.TrimSuffix(u.Name, ".h5p")
		if known[slug] {
			report.ValidUploads = append(report.ValidUploads, u.Name)
			continue
		}

		// Свежий архив: возможно, идёт приём
		if u.ModTime.After(cutoff) {
			continue
		}

		report.OrphanedUploads = append(report.OrphanedUploads, u.Name)
		report.TotalOrphaned++
	}
	return report, nil
}

// knownSlugs возвращает множество slug из каталога.
func (rs *ReconcileService) knownSlugs(ctx context.Context) (map[string]bool, error) {
	slugs, err := rs.contents.ListSlugs(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		known[s] = true
	}
	return known, nil
}

package insights

import (
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/deltascope/internal/stats"
	algstats "github.com/Sumatoshi-tech/deltascope/pkg/alg/stats"
	"github.com/Sumatoshi-tech/deltascope/pkg/units"
)

// Rule thresholds.
const (
	SmallFileMB                = 10
	OptimalFileMB              = 128
	MaxFiles                   = 1000
	SkewCV                     = 0.5
	VacuumDays                 = 7
	SmallWriteFilesPerVersion  = 5
	vacuumOverdueFactor        = 4
	neverVacuumedMinVersions   = 10
	criticalSmallFilePercent   = 50
	warningSmallFilePercent    = 20
	unpartitionedSizeGiB       = 10
	overPartitionedMinCount    = 1000
	overPartitionedMaxAvg      = 5
	underPartitionedMaxCount   = 10
	underPartitionedMinAvg     = 100
	optimizeCadenceMinVersions = 20
	smallWritesMinVersions     = 10
	hoursPerDay                = 24
	percent                    = 100
)

// Analyzer evaluates the health rules. It is stateless and safe for concurrent use.
type Analyzer struct{}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

type rule func(s *stats.TableStatistics, now time.Time) []Insight

// Analyze evaluates every rule against s and returns the findings sorted by severity.
// Ties keep rule-evaluation order. now anchors the vacuum-age rule.
func (a *Analyzer) Analyze(s *stats.TableStatistics, now time.Time) []Insight {
	rules := []rule{
		fileSizeRule,
		fileCountRule,
		vacuumRule,
		partitioningRule,
		optimizationCadenceRule,
		dataSkewRule,
		writePatternRule,
	}

	var found []Insight

	for _, evaluate := range rules {
		found = append(found, evaluate(s, now)...)
	}

	found = append(found, fallbackRule(found)...)

	slices.SortStableFunc(found, func(x, y Insight) int {
		return x.Severity.Rank() - y.Severity.Rank()
	})

	return found
}

func fileSizeRule(s *stats.TableStatistics, _ time.Time) []Insight {
	if len(s.Files) == 0 {
		return nil
	}

	var (
		out   []Insight
		small int
	)

	for _, file := range s.Files {
		if units.ToMiB(file.SizeBytes) < SmallFileMB {
			small++
		}
	}

	total := len(s.Files)
	avgMB := units.ToMiB(s.TotalSizeBytes) / float64(total)
	pctSmall := float64(small) / float64(total) * percent

	switch {
	case small > 0 && pctSmall > criticalSmallFilePercent:
		out = append(out, Insight{
			Severity: SeverityCritical,
			Category: CategoryPerformance,
			Title:    "Small Files Problem Detected",
			Description: fmt.Sprintf("%.1f%% of files (%s/%s) are smaller than %dMB. Average file size: %.2fMB. "+
				"Small files severely impact query performance.",
				pctSmall, humanize.Comma(int64(small)), humanize.Comma(int64(total)), SmallFileMB, avgMB),
			Recommendation: fmt.Sprintf("Run OPTIMIZE command to compact small files. Target file size is ~%dMB. "+
				"Consider using Auto Optimize for future writes.", OptimalFileMB),
		})
	case small > 0 && pctSmall > warningSmallFilePercent:
		out = append(out, Insight{
			Severity: SeverityWarning,
			Category: CategoryPerformance,
			Title:    "Some Small Files Detected",
			Description: fmt.Sprintf("%.1f%% of files are smaller than %dMB. Average file size: %.2fMB.",
				pctSmall, SmallFileMB, avgMB),
			Recommendation: "Consider running OPTIMIZE to improve performance. " +
				"Monitor file sizes and run OPTIMIZE periodically.",
		})
	}

	if avgMB < OptimalFileMB/2 {
		out = append(out, Insight{
			Severity: SeverityWarning,
			Category: CategoryPerformance,
			Title:    "Suboptimal Average File Size",
			Description: fmt.Sprintf("Average file size (%.2fMB) is much smaller than optimal (%dMB).",
				avgMB, OptimalFileMB),
			Recommendation: "Run OPTIMIZE to compact files to optimal size. Configure Auto Optimize for future writes.",
		})
	}

	return out
}

func fileCountRule(s *stats.TableStatistics, _ time.Time) []Insight {
	if s.NumFiles <= MaxFiles {
		return nil
	}

	return []Insight{{
		Severity: SeverityWarning,
		Category: CategoryPerformance,
		Title:    "High File Count",
		Description: fmt.Sprintf("Table has %s files. Recommended maximum is ~%s files. "+
			"High file count increases metadata overhead and slows queries.",
			humanize.Comma(int64(s.NumFiles)), humanize.Comma(MaxFiles)),
		Recommendation: "Run OPTIMIZE to reduce file count. " +
			"Consider using Auto Optimize and adjusting partition strategy.",
	}}
}

func vacuumRule(s *stats.TableStatistics, now time.Time) []Insight {
	if s.LastVacuum == nil {
		if s.TotalVersions <= neverVacuumedMinVersions {
			return nil
		}

		return []Insight{{
			Severity: SeverityWarning,
			Category: CategoryCost,
			Title:    "Table Has Never Been Vacuumed",
			Description: fmt.Sprintf("Table has %s versions but has never been vacuumed. "+
				"Old data files are accumulating, increasing storage costs.", humanize.Comma(int64(s.TotalVersions))),
			Recommendation: "Run VACUUM command to remove old data files. " +
				"Set up periodic VACUUM jobs (weekly or monthly). Note: VACUUM deletes old versions permanently.",
		}}
	}

	days := int(now.Sub(*s.LastVacuum).Hours() / hoursPerDay)
	if days <= VacuumDays*vacuumOverdueFactor {
		return nil
	}

	return []Insight{{
		Severity:    SeverityWarning,
		Category:    CategoryCost,
		Title:       "Vacuum Overdue",
		Description: fmt.Sprintf("Last vacuum was %d days ago. Old data files may be accumulating.", days),
		Recommendation: fmt.Sprintf("Run VACUUM to clean up old files. Recommended vacuum frequency: every %d days.",
			VacuumDays),
	}}
}

func partitioningRule(s *stats.TableStatistics, _ time.Time) []Insight {
	if !s.IsPartitioned() {
		if s.TotalSizeBytes <= unpartitionedSizeGiB*units.GiB {
			return nil
		}

		return []Insight{{
			Severity: SeverityInfo,
			Category: CategoryPerformance,
			Title:    "Table Not Partitioned",
			Description: fmt.Sprintf("Table is %s but has no partitioning. "+
				"Partitioning can improve query performance by enabling partition pruning.",
				humanize.IBytes(uint64(s.TotalSizeBytes))),
			Recommendation: "Consider partitioning by frequently filtered columns (e.g., date, region, category). " +
				"Avoid over-partitioning (too many partitions).",
		}}
	}

	if len(s.Files) == 0 {
		return nil
	}

	partitions := len(s.FilesPerPartition())
	avg := float64(s.NumFiles) / float64(partitions)

	switch {
	case partitions > overPartitionedMinCount && avg < overPartitionedMaxAvg:
		return []Insight{{
			Severity: SeverityWarning,
			Category: CategoryPerformance,
			Title:    "Over-Partitioned Table",
			Description: fmt.Sprintf("Table has %s partitions with average %.1f files per partition. "+
				"Too many partitions creates excessive metadata overhead.",
				humanize.Comma(int64(partitions)), avg),
			Recommendation: "Consider coarser partitioning strategy (e.g., partition by month instead of day). " +
				"Alternatively, use Z-ordering instead of partitioning.",
		}}
	case partitions < underPartitionedMaxCount && avg > underPartitionedMinAvg:
		return []Insight{{
			Severity: SeverityInfo,
			Category: CategoryPerformance,
			Title:    "Under-Partitioned Table",
			Description: fmt.Sprintf("Table has only %d partition(s) with %.0f files per partition on average. "+
				"More granular partitioning could improve query performance.", partitions, avg),
			Recommendation: "Consider finer-grained partitioning if queries frequently filter on specific columns.",
		}}
	default:
		return nil
	}
}

// optimizationCadenceRule is a coarse proxy: it does not look for OPTIMIZE commits in history.
func optimizationCadenceRule(s *stats.TableStatistics, _ time.Time) []Insight {
	if s.TotalVersions <= optimizeCadenceMinVersions || s.NumFiles <= MaxFiles {
		return nil
	}

	return []Insight{{
		Severity: SeverityInfo,
		Category: CategoryMaintenance,
		Title:    "Consider Regular Optimization",
		Description: fmt.Sprintf("Table has %s versions and %s files. Regular optimization can maintain performance.",
			humanize.Comma(int64(s.TotalVersions)), humanize.Comma(int64(s.NumFiles))),
		Recommendation: "Set up periodic OPTIMIZE jobs (weekly or after major writes). " +
			"Enable Auto Optimize for automatic compaction.",
	}}
}

func dataSkewRule(s *stats.TableStatistics, _ time.Time) []Insight {
	if len(s.Files) < 2 {
		return nil
	}

	sizes := algstats.Summarize(s.FileSizes())

	cv := sizes.CoefficientOfVariation()
	if cv <= SkewCV {
		return nil
	}

	return []Insight{{
		Severity: SeverityWarning,
		Category: CategoryPerformance,
		Title:    "Data Skew Detected",
		Description: fmt.Sprintf("High variance in file sizes detected (CV: %.2f). File sizes range from %s to %s. "+
			"This indicates data skew which can cause uneven processing.",
			cv, humanize.IBytes(uint64(sizes.Min)), humanize.IBytes(uint64(sizes.Max))),
		Recommendation: "Run OPTIMIZE to balance file sizes. " +
			"Consider using Z-ordering or different partitioning strategy. " +
			"Review data distribution in partition columns.",
	}}
}

func writePatternRule(s *stats.TableStatistics, _ time.Time) []Insight {
	if s.TotalVersions <= 1 {
		return nil
	}

	perVersion := float64(s.NumFiles) / float64(s.TotalVersions)
	if perVersion >= SmallWriteFilesPerVersion || s.TotalVersions <= smallWritesMinVersions {
		return nil
	}

	return []Insight{{
		Severity: SeverityInfo,
		Category: CategoryPerformance,
		Title:    "Many Small Writes Detected",
		Description: fmt.Sprintf("Table has %s versions with ~%.1f files added per write on average. "+
			"Frequent small writes create many small files.", humanize.Comma(int64(s.TotalVersions)), perVersion),
		Recommendation: "Batch writes together when possible. " +
			"Enable Auto Optimize to automatically compact small files. " +
			"Consider using MERGE for incremental updates.",
	}}
}

// fallbackRule runs after every other rule.
func fallbackRule(found []Insight) []Insight {
	for _, insight := range found {
		if insight.Severity == SeverityCritical || insight.Severity == SeverityWarning {
			return nil
		}
	}

	return []Insight{{
		Severity:       SeverityGood,
		Category:       CategoryPerformance,
		Title:          "Table Configuration Looks Good",
		Description:    "No significant configuration issues detected.",
		Recommendation: "Continue monitoring the table as data grows.",
	}}
}

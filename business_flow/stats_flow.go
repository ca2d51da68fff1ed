package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/app/dto"
	"github.com/linkcrm/lead-engine/config"
	"github.com/linkcrm/lead-engine/repository"
	"github.com/linkcrm/lead-engine/utils"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
)

// StatsFlow defines reporting operations over the allocation audit trail
type StatsFlow interface {
	GetAllocationStats(ctx context.Context, req *dto.AllocationStatsRequest, metadata *ClientMetadata) (*dto.AllocationStatsResponse, error)
	// ExportAllocationReport renders the stats as an XLSX workbook and
	// returns the bytes plus a suggested file name.
	ExportAllocationReport(ctx context.Context, req *dto.AllocationStatsRequest, metadata *ClientMetadata) ([]byte, string, error)
}

// StatsFlowImpl implements StatsFlow
type StatsFlowImpl struct {
	logRepo     repository.AllocationLogRepository
	userRepo    repository.UserProfileRepository
	rc          *redis.Client
	cacheConfig *config.CacheConfig
	allocCfg    config.AllocationConfig
}

// NewStatsFlow constructs a StatsFlow
func NewStatsFlow(
	logRepo repository.AllocationLogRepository,
	userRepo repository.UserProfileRepository,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
	allocCfg config.AllocationConfig,
) StatsFlow {
	return &StatsFlowImpl{
		logRepo:     logRepo,
		userRepo:    userRepo,
		rc:          rc,
		cacheConfig: cacheConfig,
		allocCfg:    allocCfg,
	}
}

func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}

func (s *StatsFlowImpl) GetAllocationStats(ctx context.Context, req *dto.AllocationStatsRequest, metadata *ClientMetadata) (*dto.AllocationStatsResponse, error) {
	orgID, start, end, err := s.parseStatsRequest(req)
	if err != nil {
		return nil, NewBusinessError("GET_ALLOCATION_STATS_VALIDATION_FAILED", "Invalid stats request", err)
	}

	cacheKey := s.cacheKey(orgID, start, end)

	// Serve from cache when fresh enough; staleness is bounded by the TTL
	if s.rc != nil {
		if bs, err := s.rc.Get(ctx, cacheKey).Bytes(); err == nil && len(bs) > 0 {
			var out dto.AllocationStatsResponse
			if err := json.Unmarshal(bs, &out); err == nil {
				out.CacheHit = true
				return &out, nil
			}
		}
	}

	resp, err := s.computeStats(ctx, req, orgID, start, end)
	if err != nil {
		return nil, NewBusinessError("GET_ALLOCATION_STATS_FAILED", "Failed to compute allocation stats", err)
	}

	if s.rc != nil {
		if bs, err := json.Marshal(resp); err == nil {
			_ = s.rc.Set(ctx, cacheKey, bs, s.statsTTL()).Err()
		}
	}

	return resp, nil
}

func (s *StatsFlowImpl) ExportAllocationReport(ctx context.Context, req *dto.AllocationStatsRequest, metadata *ClientMetadata) ([]byte, string, error) {
	orgID, start, end, err := s.parseStatsRequest(req)
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_ALLOCATION_REPORT_VALIDATION_FAILED", "Invalid stats request", err)
	}

	stats, err := s.computeStats(ctx, req, orgID, start, end)
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_ALLOCATION_REPORT_FAILED", "Failed to compute allocation stats", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Allocation"
	f.SetSheetName(f.GetSheetName(0), sheet)

	rows := [][]any{
		{"Organization", stats.OrganizationID},
		{"From", start.Format("2006-01-02")},
		{"To", end.Format("2006-01-02")},
		{},
		{"Total leads", stats.TotalLeads},
		{"Allocated leads", stats.AllocatedLeads},
		{"Failed leads", stats.FailedLeads},
		{"Duplicate leads", stats.DuplicateLeads},
		{"Allocation rate", stats.AllocationRate},
		{"Duplicate rate", stats.DuplicateRate},
		{"Avg latency (ms)", stats.AvgLatencyMS},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, "", NewBusinessError("EXPORT_ALLOCATION_REPORT_FAILED", "Failed to write report sheet", err)
		}
	}

	methodSheet := "By Method"
	if _, err := f.NewSheet(methodSheet); err != nil {
		return nil, "", NewBusinessError("EXPORT_ALLOCATION_REPORT_FAILED", "Failed to create report sheet", err)
	}
	header := []any{"Method", "Count"}
	_ = f.SetSheetRow(methodSheet, "A1", &header)
	for i, m := range stats.ByMethod {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{m.Method, m.Count}
		_ = f.SetSheetRow(methodSheet, cell, &row)
	}

	assigneeSheet := "By Assignee"
	if _, err := f.NewSheet(assigneeSheet); err != nil {
		return nil, "", NewBusinessError("EXPORT_ALLOCATION_REPORT_FAILED", "Failed to create report sheet", err)
	}
	header = []any{"User ID", "Name", "Count"}
	_ = f.SetSheetRow(assigneeSheet, "A1", &header)
	for i, u := range stats.ByAssignee {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{u.UserID, u.UserName, u.Count}
		_ = f.SetSheetRow(assigneeSheet, cell, &row)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_ALLOCATION_REPORT_FAILED", "Failed to render workbook", err)
	}

	name := fmt.Sprintf("allocation-report-%s-%s.xlsx", start.Format("20060102"), end.Format("20060102"))
	return buf.Bytes(), name, nil
}

func (s *StatsFlowImpl) computeStats(ctx context.Context, req *dto.AllocationStatsRequest, orgID uuid.UUID, start, end time.Time) (*dto.AllocationStatsResponse, error) {
	stats, err := s.logRepo.StatsByRange(ctx, &orgID, start, end)
	if err != nil {
		return nil, err
	}
	byMethod, err := s.logRepo.CountByMethod(ctx, &orgID, start, end)
	if err != nil {
		return nil, err
	}
	byAssignee, err := s.logRepo.CountByAssignee(ctx, &orgID, start, end)
	if err != nil {
		return nil, err
	}

	resp := &dto.AllocationStatsResponse{
		OrganizationID: req.OrganizationID,
		DateStart:      req.DateStart,
		DateEnd:        req.DateEnd,
		TotalLeads:     stats.TotalLeads,
		AllocatedLeads: stats.AllocatedLeads,
		FailedLeads:    stats.TotalLeads - stats.AllocatedLeads,
		DuplicateLeads: stats.DuplicateLeads,
		AvgLatencyMS:   stats.AvgLatencyMS,
	}
	if stats.TotalLeads > 0 {
		resp.AllocationRate = float64(stats.AllocatedLeads) / float64(stats.TotalLeads)
		resp.DuplicateRate = float64(stats.DuplicateLeads) / float64(stats.TotalLeads)
	}

	resp.ByMethod = make([]dto.MethodCount, 0, len(byMethod))
	for method, count := range byMethod {
		resp.ByMethod = append(resp.ByMethod, dto.MethodCount{Method: method, Count: count})
	}
	sort.Slice(resp.ByMethod, func(i, j int) bool {
		if resp.ByMethod[i].Count != resp.ByMethod[j].Count {
			return resp.ByMethod[i].Count > resp.ByMethod[j].Count
		}
		return resp.ByMethod[i].Method < resp.ByMethod[j].Method
	})

	userIDs := make([]int64, 0, len(byAssignee))
	for id := range byAssignee {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	names := make(map[int64]string, len(userIDs))
	if len(userIDs) > 0 {
		profiles, err := s.userRepo.ListActiveByIDs(ctx, userIDs)
		if err != nil {
			return nil, err
		}
		for _, p := range profiles {
			names[p.ID] = p.Nickname
		}
	}

	resp.ByAssignee = make([]dto.UserCount, 0, len(userIDs))
	for _, id := range userIDs {
		resp.ByAssignee = append(resp.ByAssignee, dto.UserCount{
			UserID:   id,
			UserName: names[id],
			Count:    byAssignee[id],
		})
	}
	sort.Slice(resp.ByAssignee, func(i, j int) bool {
		if resp.ByAssignee[i].Count != resp.ByAssignee[j].Count {
			return resp.ByAssignee[i].Count > resp.ByAssignee[j].Count
		}
		return resp.ByAssignee[i].UserID < resp.ByAssignee[j].UserID
	})

	return resp, nil
}

// parseStatsRequest defaults the window to the trailing 30 days when the
// caller gives no bounds.
func (s *StatsFlowImpl) parseStatsRequest(req *dto.AllocationStatsRequest) (uuid.UUID, time.Time, time.Time, error) {
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, fmt.Errorf("invalid organization_id: %w", err)
	}

	start, end, err := parseDateRange(req.DateStart, req.DateEnd)
	if err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, err
	}

	to := utils.UTCNow()
	if end != nil {
		to = *end
	}
	from := to.AddDate(0, 0, -30)
	if start != nil {
		from = *start
	}

	return orgID, from, to, nil
}

func (s *StatsFlowImpl) cacheKey(orgID uuid.UUID, start, end time.Time) string {
	key := fmt.Sprintf("alloc_stats:%s:%d:%d", orgID, start.Unix(), end.Unix())
	if s.cacheConfig != nil {
		return redisKey(*s.cacheConfig, key)
	}
	return key
}

func (s *StatsFlowImpl) statsTTL() time.Duration {
	if s.allocCfg.StatsCacheTTL > 0 {
		return s.allocCfg.StatsCacheTTL
	}
	return utils.DefaultStatsCacheTTL
}

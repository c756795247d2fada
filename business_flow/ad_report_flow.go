package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/click-sentinel/app/dto"
	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/repository"
	"github.com/amirphl/click-sentinel/utils"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

const blockedIPsSheet = "Blocked IPs"

// AdReportFlow exposes the click log and confirmed blocks of an advertiser
type AdReportFlow interface {
	ListClicks(ctx context.Context, advertiserID uint, req *dto.ListAdClicksRequest) (*dto.ListAdClicksResponse, error)
	ListBlockedIPs(ctx context.Context, advertiserID uint, req *dto.ListBlockedIPsRequest) (*dto.ListBlockedIPsResponse, error)
	ExportBlockedIPs(ctx context.Context, advertiserID uint) (filename string, content []byte, err error)
}

type AdReportFlowImpl struct {
	clickRepo   repository.AdClickRepository
	blockedRepo repository.BlockedIPRepository
}

func NewAdReportFlow(clickRepo repository.AdClickRepository, blockedRepo repository.BlockedIPRepository) AdReportFlow {
	return &AdReportFlowImpl{clickRepo: clickRepo, blockedRepo: blockedRepo}
}

func (f *AdReportFlowImpl) ListClicks(ctx context.Context, advertiserID uint, req *dto.ListAdClicksRequest) (*dto.ListAdClicksResponse, error) {
	filter := models.AdClickFilter{AdvertiserID: &advertiserID}

	start, err := parseDate(req.StartDate, false)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(req.EndDate, true)
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, ErrInvalidDateRange
	}
	filter.CreatedAfter = start
	filter.CreatedBefore = end
	if ip := strings.TrimSpace(req.ClientIP); ip != "" {
		filter.ClientIP = &ip
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)

	var (
		total int64
		rows  []*models.AdClick
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = f.clickRepo.Count(gctx, filter)
		return err
	})
	g.Go(func() (err error) {
		rows, err = f.clickRepo.ByFilter(gctx, filter, "created_at DESC, id DESC", pageSize, (page-1)*pageSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, NewBusinessError("CLICK_LIST_FAILED", "Failed to list clicks", err)
	}

	items := make([]dto.AdClickItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToAdClickDTO(*r))
	}
	return &dto.ListAdClicksResponse{
		Items:      items,
		Pagination: newPagination(page, pageSize, total),
	}, nil
}

func confirmedFilter(advertiserID uint) models.BlockedIPFilter {
	return models.BlockedIPFilter{
		AdvertiserID: &advertiserID,
		Status:       utils.ToPtr(models.BlockStatusConfirmed),
	}
}

// ListBlockedIPs pages through confirmed blocks, newest first. Pending reservations are never listed.
func (f *AdReportFlowImpl) ListBlockedIPs(ctx context.Context, advertiserID uint, req *dto.ListBlockedIPsRequest) (*dto.ListBlockedIPsResponse, error) {
	filter := confirmedFilter(advertiserID)
	page, pageSize := normalizePage(req.Page, req.PageSize)

	var (
		total int64
		rows  []*models.BlockedIP
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = f.blockedRepo.Count(gctx, filter)
		return err
	})
	g.Go(func() (err error) {
		rows, err = f.blockedRepo.ByFilter(gctx, filter, "blocked_at DESC, id DESC", pageSize, (page-1)*pageSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, NewBusinessError("BLOCKED_IP_LIST_FAILED", "Failed to list blocked ips", err)
	}

	items := make([]dto.BlockedIPItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToBlockedIPDTO(*r))
	}
	return &dto.ListBlockedIPsResponse{
		Items:      items,
		Pagination: newPagination(page, pageSize, total),
	}, nil
}

// ExportBlockedIPs renders every confirmed block of the advertiser as an xlsx workbook
func (f *AdReportFlowImpl) ExportBlockedIPs(ctx context.Context, advertiserID uint) (string, []byte, error) {
	rows, err := f.blockedRepo.ByFilter(ctx, confirmedFilter(advertiserID), "blocked_at DESC, id DESC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("BLOCKED_IP_LIST_FAILED", "Failed to list blocked ips", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), blockedIPsSheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare Excel sheet", err)
	}

	header := []string{"id", "ip_address", "memo", "blocked_at", "created_at"}
	if err := xl.SetSheetRow(blockedIPsSheet, "A1", &header); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel header", err)
	}

	for i, r := range rows {
		blockedAt := ""
		if r.BlockedAt != nil {
			blockedAt = r.BlockedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.IPAddress,
			utils.Deref(r.Memo),
			blockedAt,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(blockedIPsSheet, cellRef, &record); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel row", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("blocked_ips_%d_%s.xlsx", advertiserID, utils.UTCNow().Format("20060102"))
	return filename, buf.Bytes(), nil
}

// parseDate accepts RFC3339 or a bare date. A bare end date is widened to the start of the next day.
func parseDate(value string, end bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, ErrInvalidDateFormat
	}
	if end {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

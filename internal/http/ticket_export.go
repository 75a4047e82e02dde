package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/service"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// TicketExportHeader 工单导出表头
var TicketExportHeader = []string{
	"Ticket Number",
	"Status",
	"Pothole ID",
	"Assigned Worker",
	"Assigned At",
	"Started At",
	"Completed At",
	"Resolved At",
	"Notes",
	"Created At",
}

// TicketExporter 管理端工单 Excel 导出
type TicketExporter struct {
	tickets service.TicketService
	logger  *zap.Logger
}

// NewTicketExporter 创建工单导出器
func NewTicketExporter(tickets service.TicketService, logger *zap.Logger) *TicketExporter {
	return &TicketExporter{tickets: tickets, logger: logger}
}

// Export GET /api/v1/tickets/export?status=...
func (e *TicketExporter) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.ListTicketsRequest{Page: 1, Size: 200}
	if s := q.Get("status"); s != "" {
		for _, v := range strings.Split(s, ",") {
			status := domain.TicketStatus(strings.TrimSpace(v))
			if !status.Valid() {
				writeJSON(w, http.StatusBadRequest, Fail("unknown ticket status"))
				return
			}
			req.Statuses = append(req.Statuses, status)
		}
	}

	// 分页拉全量
	var all []*domain.Ticket
	for {
		result, err := e.tickets.ListTickets(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		all = append(all, result.Items...)
		if len(all) >= result.Total || len(result.Items) == 0 {
			break
		}
		req.Page++
	}

	data, err := generateTicketExcel(all)
	if err != nil {
		e.logger.Error("ticket export failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("export failed"))
		return
	}

	filename := fmt.Sprintf("tickets-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = w.Write(data)
}

// generateTicketExcel 生成工单 Excel 文件
func generateTicketExcel(tickets []*domain.Ticket) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Tickets"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range TicketExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, title)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	fmtTime := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02 15:04:05")
	}

	for i, t := range tickets {
		row := i + 2
		values := []any{
			t.TicketNumber,
			string(t.Status),
			t.PotholeID,
			t.AssignedWorkerID.String,
			fmtTime(t.AssignedAt),
			fmtTime(t.StartedAt),
			fmtTime(t.CompletedAt),
			fmtTime(t.ResolvedAt),
			t.Notes.String,
			t.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	_ = f.Close()
	return buf.Bytes(), nil
}

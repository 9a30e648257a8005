package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"nfcattendance/internal/attendance"
	"nfcattendance/internal/auth"
	"nfcattendance/internal/metrics"
)

// ---------- Record ----------

type recordRequest struct {
	StudentID   string  `json:"student_id"`
	NFCTagID    string  `json:"nfc_tag_id"`
	FacultyName string  `json:"faculty_name"`
	Section     *string `json:"section"`
	Subject     *string `json:"subject"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
}

// RecordAttendance admits one scan. Every rejection, including an unknown
// student or tag, is a 400.
func (h *Handler) RecordAttendance(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "No data provided")
		return
	}
	recordedBy := strings.TrimSpace(req.FacultyName)
	if recordedBy == "" {
		if claims, ok := auth.ClaimsFrom(c); ok {
			recordedBy = claims.Name
		}
	}

	rec, err := h.Attendance.RecordScan(c.Request.Context(), attendance.Scan{
		StudentID: req.StudentID,
		NFCTagID:  req.NFCTagID,
		Meta: attendance.Meta{
			RecordedBy: recordedBy,
			Section:    req.Section,
			Subject:    req.Subject,
			Date:       req.Date,
			ClassTime:  req.Time,
		},
	})
	h.Metrics.Admissions.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Attendance recorded successfully",
		"attendance": rec,
	})
}

// ---------- Queries ----------

func (h *Handler) StudentAttendance(c *gin.Context) {
	records, err := h.Attendance.History(c.Request.Context(), c.Param("id"), queryLimit(c, 0))
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "attendance": records})
}

func (h *Handler) RecentAttendance(c *gin.Context) {
	records, err := h.Attendance.Recent(c.Request.Context(), queryLimit(c, attendance.DefaultRecentLimit))
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "attendance": records})
}

func (h *Handler) AttendanceByDate(c *gin.Context) {
	day := h.Attendance.Today()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			badRequest(c, "Invalid date format. Use YYYY-MM-DD")
			return
		}
		day = parsed
	}
	records, err := h.Attendance.OnDate(c.Request.Context(), day)
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":       day.Format("2006-01-02"),
		"count":      len(records),
		"attendance": records,
	})
}

func (h *Handler) AttendanceStats(c *gin.Context) {
	stats, err := h.Attendance.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, stats)
}

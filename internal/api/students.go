package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"nfcattendance/internal/roster"
)

const maxUploadBytes = 5 << 20

// ---------- Students ----------

func (h *Handler) CreateStudent(c *gin.Context) {
	var in roster.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "No data provided")
		return
	}
	st, err := h.Roster.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Student created successfully", "student": st})
}

// UploadStudents imports a CSV roster sent as multipart field "file".
func (h *Handler) UploadStudents(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "No file provided")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		badRequest(c, "No file selected")
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		badRequest(c, "Invalid file type. Please upload a .csv file")
		return
	}

	rows, err := roster.ParseCSV(file)
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	res, err := h.Roster.BulkCreate(c.Request.Context(), rows)
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	status := http.StatusCreated
	if res.SuccessCount == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{
		"message":       fmt.Sprintf("Upload completed: %d students added, %d failed", res.SuccessCount, res.FailedCount),
		"success_count": res.SuccessCount,
		"failed_count":  res.FailedCount,
		"errors":        res.Errors,
	})
}

func (h *Handler) ListStudents(c *gin.Context) {
	f := roster.Filter{
		Section:    c.Query("section"),
		Department: c.Query("department"),
		Duration:   c.Query("duration"),
		Search:     c.Query("search"),
	}
	if v := c.Query("has_nfc"); v != "" {
		has := strings.EqualFold(v, "true")
		f.HasNFC = &has
	}
	students, err := h.Roster.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(students), "students": students})
}

func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.Roster.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st})
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.Roster.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Student deleted successfully"})
}

// ---------- NFC ----------

type registerTagRequest struct {
	StudentID string `json:"student_id"`
	NFCTagID  string `json:"nfc_tag_id"`
}

func (h *Handler) RegisterTag(c *gin.Context) {
	var req registerTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "No data provided")
		return
	}
	if strings.TrimSpace(req.StudentID) == "" || strings.TrimSpace(req.NFCTagID) == "" {
		badRequest(c, "student_id and nfc_tag_id are required")
		return
	}
	st, err := h.Roster.RegisterTag(c.Request.Context(), req.StudentID, req.NFCTagID)
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "NFC tag registered successfully", "student": st})
}

func (h *Handler) UnregisterTag(c *gin.Context) {
	if err := h.Roster.UnregisterTag(c.Request.Context(), c.Param("student_id")); err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "NFC tag unregistered successfully"})
}

func (h *Handler) StudentByTag(c *gin.Context) {
	st, err := h.Roster.GetByTag(c.Request.Context(), c.Param("tag"))
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st})
}

func (h *Handler) CheckTag(c *gin.Context) {
	tag := c.Param("tag")
	ok, err := h.Roster.IsTagRegistered(c.Request.Context(), tag)
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nfc_tag_id": tag, "is_registered": ok})
}

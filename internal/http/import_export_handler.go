package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/service"

	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// 上传的 Excel 最大 10MB
const maxImportBytes = 10 << 20

// ImportExportHandler 人员/建筑 Excel 导入导出
type ImportExportHandler struct {
	svc    service.ImportExportService
	logger *zap.Logger

	exportPersons   http.HandlerFunc
	exportBuildings http.HandlerFunc
	importPersons   http.HandlerFunc
	importBuildings http.HandlerFunc
	status          http.HandlerFunc
}

func NewImportExportHandler(a *Authenticator, svc service.ImportExportService, logger *zap.Logger) *ImportExportHandler {
	h := &ImportExportHandler{svc: svc, logger: logger}
	h.exportPersons = a.requirePermission(auth.PermImportExport, h.handleExportPersons)
	h.exportBuildings = a.requirePermission(auth.PermImportExport, h.handleExportBuildings)
	h.importPersons = a.requirePermission(auth.PermImportExport, h.handleImportPersons)
	h.importBuildings = a.requirePermission(auth.PermImportExport, h.handleImportBuildings)
	h.status = a.requirePermission(auth.PermImportExport, h.handleStatus)
	return h
}

func (h *ImportExportHandler) ExportPersons(w http.ResponseWriter, r *http.Request)   { h.exportPersons(w, r) }
func (h *ImportExportHandler) ExportBuildings(w http.ResponseWriter, r *http.Request) { h.exportBuildings(w, r) }
func (h *ImportExportHandler) ImportPersons(w http.ResponseWriter, r *http.Request)   { h.importPersons(w, r) }
func (h *ImportExportHandler) ImportBuildings(w http.ResponseWriter, r *http.Request) { h.importBuildings(w, r) }
func (h *ImportExportHandler) Status(w http.ResponseWriter, r *http.Request)          { h.status(w, r) }

// writeExportFile 以附件下载形式返回 xlsx。
// 文件名含中文，走 RFC 5987 的 filename* 形式。
func writeExportFile(w http.ResponseWriter, f *service.ExportFile) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="export.xlsx"; filename*=UTF-8''%s`, url.PathEscape(f.Filename)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Content)
}

func (h *ImportExportHandler) handleExportPersons(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	f, err := h.svc.ExportPersons(r.Context(), p)
	if err != nil {
		h.logger.Error("人员导出失败", zap.String("username", p.Username), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("导出失败，请稍后重试"))
		return
	}
	writeExportFile(w, f)
}

func (h *ImportExportHandler) handleExportBuildings(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	f, err := h.svc.ExportBuildings(r.Context(), p)
	if err != nil {
		h.logger.Error("建筑导出失败", zap.String("username", p.Username), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("导出失败，请稍后重试"))
		return
	}
	writeExportFile(w, f)
}

// readImportFile 从 multipart 表单取上传的 Excel 内容
func readImportFile(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		return nil, fmt.Errorf("请上传不超过10MB的Excel文件")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("请选择要导入的Excel文件")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportBytes))
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("上传的文件为空")
	}
	return data, nil
}

func (h *ImportExportHandler) handleImportPersons(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	data, err := readImportFile(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	summary, err := h.svc.ImportPersons(r.Context(), p, data)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Result[*service.ImportSummary]{
		Code: ResultSuccess, Type: "success", Message: summary.Message, Result: summary,
	})
}

func (h *ImportExportHandler) handleImportBuildings(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	data, err := readImportFile(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	summary, err := h.svc.ImportBuildings(r.Context(), p, data)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Result[*service.ImportSummary]{
		Code: ResultSuccess, Type: "success", Message: summary.Message, Result: summary,
	})
}

func (h *ImportExportHandler) handleStatus(w http.ResponseWriter, r *http.Request, _ *auth.Principal) {
	writeJSON(w, http.StatusOK, Ok(h.svc.Status(r.Context())))
}

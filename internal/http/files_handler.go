package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// ==================== File Handlers ====================

func (h *Handler) ListFiles(c *gin.Context) {
	resp, err := h.files.List(c.Request.Context(), c.Param("subscription_id"), c.Query("directory"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetFileContents(c *gin.Context) {
	contents, err := h.files.Contents(c.Request.Context(), c.Param("subscription_id"), c.Query("file"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.String(http.StatusOK, contents)
}

func (h *Handler) WriteFile(c *gin.Context) {
	var req models.WriteFileRequest
	if !h.bindJSON(c, &req) {
		return
	}
	err := h.files.Write(c.Request.Context(), c.Param("subscription_id"), req.File, req.Content)
	h.respondFiles(c, "File saved", nil, err)
}

func (h *Handler) RenameFiles(c *gin.Context) {
	var req models.RenameFilesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	err := h.files.Rename(c.Request.Context(), c.Param("subscription_id"), req.Root, req.Files)
	h.respondFiles(c, "Renamed", nil, err)
}

func (h *Handler) DeleteFiles(c *gin.Context) {
	var req models.FilesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	err := h.files.Delete(c.Request.Context(), c.Param("subscription_id"), req.Root, req.Files)
	h.respondFiles(c, "Deleted", nil, err)
}

func (h *Handler) CreateFolder(c *gin.Context) {
	var req models.CreateFolderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	err := h.files.CreateFolder(c.Request.Context(), c.Param("subscription_id"), req.Root, req.Name)
	h.respondFiles(c, "Folder created", nil, err)
}

func (h *Handler) CompressFiles(c *gin.Context) {
	var req models.FilesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	archive, err := h.files.Compress(c.Request.Context(), c.Param("subscription_id"), req.Root, req.Files)
	h.respondFiles(c, "Archive created", archive, err)
}

func (h *Handler) DecompressFile(c *gin.Context) {
	var req models.DecompressRequest
	if !h.bindJSON(c, &req) {
		return
	}
	err := h.files.Decompress(c.Request.Context(), c.Param("subscription_id"), req.Root, req.File)
	h.respondFiles(c, "Archive extracted", nil, err)
}

func (h *Handler) FileDownloadURL(c *gin.Context) {
	url, err := h.files.DownloadURL(c.Request.Context(), c.Param("subscription_id"), c.Query("file"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SignedURL{URL: url})
}

func (h *Handler) FileUploadURL(c *gin.Context) {
	url, err := h.files.UploadURL(c.Request.Context(), c.Param("subscription_id"), c.Query("directory"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SignedURL{URL: url})
}

func (h *Handler) respondFiles(c *gin.Context, successMsg string, data interface{}, err error) {
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	h.respond(c, &models.MutationResponse{Notice: models.SuccessNotice(successMsg), Data: data}, nil)
}

// ==================== Backup Handlers ====================

func (h *Handler) ListBackups(c *gin.Context) {
	backups, err := h.backups.List(c.Request.Context(), currentUser(c), c.Param("subscription_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": backups})
}

func (h *Handler) CreateBackup(c *gin.Context) {
	var req models.CreateBackupRequest
	// An empty body creates an unnamed backup.
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.backups.Create(c.Request.Context(), currentUser(c), c.Param("subscription_id"), req.Name)
	h.respond(c, resp, err)
}

func (h *Handler) DeleteBackup(c *gin.Context) {
	resp, err := h.backups.Delete(c.Request.Context(), currentUser(c), c.Param("subscription_id"), c.Param("backup_id"))
	h.respond(c, resp, err)
}

func (h *Handler) RestoreBackup(c *gin.Context) {
	var req models.RestoreBackupRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.backups.Restore(c.Request.Context(), currentUser(c), c.Param("subscription_id"), c.Param("backup_id"), req.Truncate)
	h.respond(c, resp, err)
}

func (h *Handler) BackupDownloadURL(c *gin.Context) {
	url, err := h.backups.DownloadURL(c.Request.Context(), currentUser(c), c.Param("subscription_id"), c.Param("backup_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SignedURL{URL: url})
}

// ==================== Settings Handlers ====================

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Settings(c.Request.Context(), currentUser(c), c.Param("subscription_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req models.ServerSettings
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.settings.UpdateSettings(c.Request.Context(), currentUser(c), c.Param("subscription_id"), &req)
	h.respond(c, resp, err)
}

// GetSFTPCredentials returns the SFTP login with the password in clear.
func (h *Handler) GetSFTPCredentials(c *gin.Context) {
	creds, err := h.settings.SFTPCredentials(c.Request.Context(), currentUser(c), c.Param("subscription_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, creds)
}

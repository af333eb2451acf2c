package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxImageSize = 5 << 20

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// UploadImage stores a product image under UploadDir/yyyy/mm/dd and returns
// the public /uploads URL.
func UploadImage(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Archivo no encontrado"})
			return
		}
		if file.Size > maxImageSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "La imagen no puede superar 5 MB"})
			return
		}

		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !imageExtensions[ext] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Formato de imagen no permitido"})
			return
		}
		newFileName := fmt.Sprintf("%s%s", uuid.New().String(), ext)

		datePath := time.Now().Format("2006/01/02")
		dateDir := filepath.Join(d.UploadDir, filepath.FromSlash(datePath))
		if err := os.MkdirAll(dateDir, 0755); err != nil {
			internalError(c, d.Log, err, "create upload dir")
			return
		}

		if err := c.SaveUploadedFile(file, filepath.Join(dateDir, newFileName)); err != nil {
			internalError(c, d.Log, err, "save upload")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"url": fmt.Sprintf("/uploads/%s/%s", datePath, newFileName),
		})
	}
}

package api

import (
	"github.com/mlesyk/gradpipe/app/database"
)

type Handler struct {
	admissionRepo database.AdmissionRepository
	watermarkRepo database.WatermarkRepository
}

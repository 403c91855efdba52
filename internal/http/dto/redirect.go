package dto

import "anchorline.app/resolver/internal/model"

type RegisterRedirectRequest struct {
	OldCode string `json:"old_code" binding:"required"`
	NewCode string `json:"new_code" binding:"required"`
}

type RegisterRedirectResponse struct {
	Pattern *model.LearnedPattern `json:"pattern"`
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type proposalRequest struct {
	TargetUserID int64  `json:"target_user_id"`
	DisplayName  string `json:"display_name"`
}

type confirmRequest struct {
	ProposalID int64 `json:"proposal_id"`
}

// ProposeFreeze stages a freeze for the given user.
func (s *Server) ProposeFreeze(c *gin.Context) {
	var req proposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	proposal, err := s.exclusionSvc.ProposeFreeze(c.Request.Context(), s.actorID(c), req.TargetUserID, strings.TrimSpace(req.DisplayName))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, proposal)
}

// ProposeUnfreeze stages an unfreeze for the given user.
func (s *Server) ProposeUnfreeze(c *gin.Context) {
	var req proposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	proposal, err := s.exclusionSvc.ProposeUnfreeze(c.Request.Context(), s.actorID(c), req.TargetUserID, strings.TrimSpace(req.DisplayName))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, proposal)
}

// ConfirmProposal applies a pending proposal.
func (s *Server) ConfirmProposal(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	proposal, err := s.exclusionSvc.Confirm(c.Request.Context(), s.actorID(c), req.ProposalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, proposal)
}

// RejectProposal closes a pending proposal without applying it.
func (s *Server) RejectProposal(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	proposal, err := s.exclusionSvc.Reject(c.Request.Context(), s.actorID(c), req.ProposalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, proposal)
}

// ListFrozen returns the frozen-user registry.
func (s *Server) ListFrozen(c *gin.Context) {
	users, err := s.exclusionSvc.ListFrozen(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"frozen_users": users})
}

// ListPendingProposals returns proposals awaiting confirmation.
func (s *Server) ListPendingProposals(c *gin.Context) {
	proposals, err := s.exclusionSvc.ListPending(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

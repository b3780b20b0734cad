package api

import (
	"net/http"

	"civicrelay/pkg/errs"
	"civicrelay/pkg/types"

	"github.com/gin-gonic/gin"
)

type toggleRequest struct {
	NodeID string `json:"nodeId"`
	Action string `json:"action"`
}

func (s *Server) fleetStats(c *gin.Context) {
	stats, err := s.deps.Fleet.GetFleetStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) toggleNode(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.Wrap(errs.KindValidation, "body must be JSON with nodeId and action", err))
		return
	}

	result, err := s.deps.Fleet.ToggleNode(c.Request.Context(), types.NodeID(req.NodeID), req.Action)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": result})
}

func (s *Server) addNode(c *gin.Context) {
	result, err := s.deps.Fleet.AddNode(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": result})
}

func (s *Server) removeNode(c *gin.Context) {
	result, err := s.deps.Fleet.RemoveNode(c.Request.Context(), types.NodeID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": result})
}

func (s *Server) nodeFiles(c *gin.Context) {
	id := c.Param("id")
	chunks, err := s.deps.Fleet.InspectNode(c.Request.Context(), types.NodeID(id))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"node_id": id, "chunks": chunks})
}

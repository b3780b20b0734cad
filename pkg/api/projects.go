package api

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"civicrelay/pkg/auth"
	"civicrelay/pkg/errs"
	"civicrelay/pkg/metastore"
	"civicrelay/pkg/relay"
	"civicrelay/pkg/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	fileField = "file"
	// DeclaredSizeHeader carries the file size the client intends to send.
	DeclaredSizeHeader = "X-File-Size"

	maxFormFields = 32
	maxFieldBytes = 64 << 10
)

func (s *Server) listProjects(c *gin.Context) {
	var filter metastore.Filter
	if raw := c.Query("deletionRequested"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, errs.New(errs.KindValidation, "deletionRequested must be true or false"))
			return
		}
		filter.DeletionRequested = &v
	}

	projects, err := s.deps.Projects.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) viewDocument(c *gin.Context) {
	doc, err := s.deps.Documents.Fetch(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", doc.Disposition())
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

// createProject streams a multipart upload straight into a staging file,
// collects the form fields around it, then forwards the document and
// writes the project record.
func (s *Server) createProject(c *gin.Context) {
	identity, ok := auth.GetIdentity(c)
	if !ok {
		fail(c, errs.New(errs.KindUnauthenticated, "Authentication required"))
		return
	}
	ctx := c.Request.Context()

	declared, err := declaredSize(c.GetHeader(DeclaredSizeHeader))
	if err != nil {
		fail(c, err)
		return
	}

	mr, err := c.Request.MultipartReader()
	if err != nil {
		fail(c, errs.Wrap(errs.KindValidation, "multipart form body is required", err))
		return
	}

	var session *relay.UploadSession
	defer func() {
		if session != nil {
			if err := session.Release(); err != nil {
				s.logger.Warn("Failed to release staging file", zap.Error(err))
			}
		}
	}()

	fields := make(map[string]string)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				fail(c, errs.Wrap(errs.KindCanceled, "request canceled", err))
				return
			}
			fail(c, errs.Wrap(errs.KindValidation, "malformed multipart body", err))
			return
		}

		if part.FormName() == fileField && part.FileName() != "" {
			if session != nil {
				part.Close()
				fail(c, errs.New(errs.KindValidation, "only one file may be uploaded"))
				return
			}
			session, err = s.deps.Uploads.Open(identity.CloudToken, part.FileName(), declared)
			if err != nil {
				part.Close()
				fail(c, err)
				return
			}
			err = s.deps.Uploads.Receive(ctx, session, part)
			part.Close()
			if err != nil {
				fail(c, err)
				return
			}
			continue
		}

		if len(fields) >= maxFormFields {
			part.Close()
			fail(c, errs.New(errs.KindValidation, "too many form fields"))
			return
		}
		value, err := readField(part)
		part.Close()
		if err != nil {
			fail(c, err)
			return
		}
		fields[part.FormName()] = value
	}

	if session == nil {
		fail(c, errs.New(errs.KindValidation, "file is required"))
		return
	}
	draft, err := draftFromForm(fields)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := s.deps.Uploads.Forward(ctx, session, draft)
	if err != nil {
		fail(c, err)
		return
	}

	if res.Partial() {
		_ = c.Error(res.MetadataErr)
		c.JSON(http.StatusAccepted, gin.H{
			"partial":  true,
			"error":    "Document stored but the project record could not be saved",
			"ipfsHash": res.Commit.ContentID,
			"filename": res.Commit.Filename,
			"size":     res.Commit.Size,
		})
		return
	}
	c.JSON(http.StatusCreated, res.Record)
}

func (s *Server) requestDeletion(c *gin.Context) {
	if _, err := s.deps.Projects.RequestDeletion(c.Request.Context(), types.ProjectID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deletion requested."})
}

func (s *Server) deleteProject(c *gin.Context) {
	if err := s.deps.Projects.Delete(c.Request.Context(), types.ProjectID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

// declaredSize parses the optional size header; -1 means not declared.
func declaredSize(raw string) (int64, error) {
	if raw == "" {
		return -1, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0, errs.Validationf("%s must be a non-negative integer", DeclaredSizeHeader)
	}
	return n, nil
}

func readField(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFieldBytes+1))
	if err != nil {
		return "", errs.Wrap(errs.KindValidation, "malformed multipart body", err)
	}
	if len(data) > maxFieldBytes {
		return "", errs.New(errs.KindValidation, fmt.Sprintf("form field exceeds %d bytes", maxFieldBytes))
	}
	return string(data), nil
}

func draftFromForm(fields map[string]string) (relay.Draft, error) {
	draft := relay.Draft{
		Title:       strings.TrimSpace(fields["title"]),
		Description: fields["description"],
		Proposer:    strings.TrimSpace(fields["proposer"]),
	}
	if draft.Title == "" {
		return draft, errs.New(errs.KindValidation, "title is required")
	}

	if raw := strings.TrimSpace(fields["fundingGoal"]); raw != "" {
		goal, err := strconv.ParseFloat(raw, 64)
		if err != nil || goal < 0 || math.IsNaN(goal) || math.IsInf(goal, 0) {
			return draft, errs.New(errs.KindValidation, "fundingGoal must be a non-negative number")
		}
		draft.FundingGoal = goal
	}
	return draft, nil
}

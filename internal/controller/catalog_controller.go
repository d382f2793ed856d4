package controller

import (
	"testbank_backend/internal/model"
	"testbank_backend/internal/service"
	"testbank_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CatalogController struct {
	Service *service.CatalogService
}

func NewCatalogController(svc *service.CatalogService) *CatalogController {
	return &CatalogController{Service: svc}
}

// @Summary 可选课程
// @Description 学生返回本年级课程，教师和管理员返回全部课程
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Lesson}
// @Router /api/exams/lessons [get]
func (c *CatalogController) ListLessons(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	levelID := uint(0)
	if user.Role == model.Student {
		levelID = user.LevelID
	}

	lessons, err := c.Service.ListLessons(ctx.Request.Context(), levelID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, lessons)
}

// @Summary 课程主题
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Topic}
// @Failure 404 {object} util.Response
// @Router /api/exams/lessons/{lessonId}/topics [get]
func (c *CatalogController) ListTopics(ctx *gin.Context) {
	lessonID := util.MustParseUint(ctx.Param("lessonId"))
	if lessonID == 0 {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}

	topics, err := c.Service.ListTopics(ctx.Request.Context(), lessonID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, topics)
}

// @Summary 难度列表
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Difficulty}
// @Router /api/exams/difficulties [get]
func (c *CatalogController) ListDifficulties(ctx *gin.Context) {
	ds, err := c.Service.ListDifficulties(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, ds)
}

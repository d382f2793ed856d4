package controller

import (
	"testbank_backend/internal/service"
	"testbank_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	Service *service.ExamService
}

func NewExamController(svc *service.ExamService) *ExamController {
	return &ExamController{Service: svc}
}

// @Summary 开始考试
// @Description 按课程、主题、难度抽题并创建考试会话，题池不足时返回全部候选题
// @Tags 考试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.StartExamRequest true "开考参数"
// @Success 201 {object} util.Response{data=service.StartExamResponse}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/exams/start [post]
func (c *ExamController) StartExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.StartExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.Service.StartExam(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, resp)
}

// @Summary 保存作答进度
// @Tags 考试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param body body service.AnswersRequest true "答案"
// @Success 200 {object} util.Response{data=service.RecordResult}
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/exams/{id}/answers [put]
func (c *ExamController) SaveAnswers(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.AnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.Service.SaveAnswers(ctx.Request.Context(), ctx.Param("id"), user.UserID, req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, res)
}

// @Summary 交卷
// @Description 保存答案并立即评分，未作答题目计为错误
// @Tags 考试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param body body service.AnswersRequest true "答案"
// @Success 200 {object} util.Response{data=service.GradeResult}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/exams/{id}/submit [post]
func (c *ExamController) SubmitExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.AnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.SubmitExam(ctx.Request.Context(), ctx.Param("id"), user.UserID, req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 考试记录
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]service.SessionSummary}
// @Router /api/exams/history [get]
func (c *ExamController) GetHistory(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	items, err := c.Service.GetHistory(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, items)
}

// @Summary 考试概要
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionSummary}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/exams/{id}/summary [get]
func (c *ExamController) GetSummary(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	summary, err := c.Service.GetSummary(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, summary)
}

// @Summary 考试回顾
// @Description 按出题顺序返回每道题的选项、正确答案与所选答案
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=[]service.ReviewRecord}
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/exams/{id}/review [get]
func (c *ExamController) GetReview(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	records, err := c.Service.GetReview(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, records)
}

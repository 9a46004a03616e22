package controller

import (
	"staff_training_backend/internal/service"
	"staff_training_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizAttemptController struct {
	Service *service.AttemptService
}

func NewQuizAttemptController(svc *service.AttemptService) *QuizAttemptController {
	return &QuizAttemptController{Service: svc}
}

type SubmitAttemptReq struct {
	Answers []service.SubmittedAnswer `json:"answers"`
}

func staffFromContext(ctx *gin.Context) (service.StaffIdentity, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		return service.StaffIdentity{}, false
	}
	return service.StaffIdentity{
		StaffID:      user.UserID,
		RestaurantID: user.RestaurantID,
		Role:         user.Role,
	}, true
}

// @Summary 获取可参加的测验
// @Tags 员工测验
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /quizzes [get]
func (c *QuizAttemptController) ListQuizzes(ctx *gin.Context) {
	staff, ok := staffFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	quizzes, err := c.Service.ListAvailableQuizzes(ctx.Request.Context(), staff)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": quizzes, "total": len(quizzes)})
}

// @Summary 开始一次测验
// @Description 返回未见过的题目（不含正确答案）；全部题目已完成时返回空列表
// @Tags 员工测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /quizzes/{id}/attempts/start [post]
func (c *QuizAttemptController) StartAttempt(ctx *gin.Context) {
	staff, ok := staffFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	questions, err := c.Service.StartAttempt(ctx.Request.Context(), staff, ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"questions": questions, "completed": len(questions) == 0})
}

// @Summary 提交测验答案
// @Tags 员工测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Param body body SubmitAttemptReq true "答案"
// @Success 200 {object} util.Response
// @Router /quizzes/{id}/attempts/submit [post]
func (c *QuizAttemptController) SubmitAttempt(ctx *gin.Context) {
	staff, ok := staffFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitAttemptReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.SubmitAttempt(ctx.Request.Context(), staff, ctx.Param("id"), req.Answers)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 获取测验进度
// @Tags 员工测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /quizzes/{id}/progress [get]
func (c *QuizAttemptController) GetProgress(ctx *gin.Context) {
	staff, ok := staffFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.Service.GetProgress(ctx.Request.Context(), staff, ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// @Summary 获取测验历史记录
// @Tags 员工测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} util.Response
// @Router /quizzes/{id}/attempts [get]
func (c *QuizAttemptController) ListAttempts(ctx *gin.Context) {
	staff, ok := staffFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	limit := util.QueryLimit(ctx.Query("limit"), 20, 100)

	attempts, err := c.Service.ListAttempts(ctx.Request.Context(), staff, ctx.Param("id"), limit)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": attempts, "total": len(attempts)})
}

package controller

import (
	"errors"
	"staff_training_backend/internal/service"
	"staff_training_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizAdminController struct {
	Service *service.QuizService
}

func NewQuizAdminController(svc *service.QuizService) *QuizAdminController {
	return &QuizAdminController{Service: svc}
}

// @Summary 创建测验
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateQuizRequest true "测验配置"
// @Success 201 {object} util.Response
// @Router /admin/quizzes [post]
func (c *QuizAdminController) CreateQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CreateQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.CreateQuiz(ctx.Request.Context(), user.RestaurantID, req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Created(ctx, quiz)
}

// @Summary 测验列表
// @Tags 测验管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /admin/quizzes [get]
func (c *QuizAdminController) ListQuizzes(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	quizzes, err := c.Service.ListQuizzes(ctx.Request.Context(), user.RestaurantID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": quizzes, "total": len(quizzes)})
}

// @Summary 测验详情
// @Tags 测验管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /admin/quizzes/{id} [get]
func (c *QuizAdminController) GetQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	quiz, err := c.Service.GetQuiz(ctx.Request.Context(), user.RestaurantID, ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, quiz)
}

// @Summary 更新测验
// @Description 修改题库来源或每次题量时会重新计算题池大小，题量超过题池时拒绝更新
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Param body body service.UpdateQuizRequest true "测验配置"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /admin/quizzes/{id} [put]
func (c *QuizAdminController) UpdateQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.UpdateQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.UpdateQuiz(ctx.Request.Context(), user.RestaurantID, ctx.Param("id"), req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, quiz)
}

// @Summary 重新计算题池大小
// @Tags 测验管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /admin/quizzes/{id}/snapshot [post]
func (c *QuizAdminController) RecomputeSnapshot(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	size, err := c.Service.RecomputeSnapshot(ctx.Request.Context(), user.RestaurantID, ctx.Param("id"))
	if errors.Is(err, util.ErrValidation) {
		// 快照已更新，但题池不足以组成一次测验
		util.Success(ctx, gin.H{"poolSizeSnapshot": size, "attemptSizeExceedsPool": true, "warning": err.Error()})
		return
	}
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"poolSizeSnapshot": size, "attemptSizeExceedsPool": false})
}

// @Summary 员工进度概览
// @Tags 测验管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /admin/quizzes/{id}/progress [get]
func (c *QuizAdminController) ListProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	rows, err := c.Service.ListQuizProgress(ctx.Request.Context(), user.RestaurantID, ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": rows, "total": len(rows)})
}

// @Summary 重置测验进度
// @Description 清空所有员工进度并删除答题记录（不可恢复），archive=true 时先归档
// @Tags 测验管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Param archive query bool false "是否先归档答题记录"
// @Success 200 {object} util.Response
// @Router /admin/quizzes/{id}/reset [post]
func (c *QuizAdminController) ResetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	location, err := c.Service.ResetProgress(ctx.Request.Context(), user.RestaurantID, ctx.Param("id"), ctx.Query("archive") == "true")
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"reset": ctx.Param("id"), "archive": location})
}

// @Summary 删除测验
// @Description 同时删除所有进度和答题记录，archive=true 时先归档
// @Tags 测验管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验ID"
// @Param archive query bool false "是否先归档答题记录"
// @Success 200 {object} util.Response
// @Router /admin/quizzes/{id} [delete]
func (c *QuizAdminController) DeleteQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	location, err := c.Service.DeleteQuiz(ctx.Request.Context(), user.RestaurantID, ctx.Param("id"), ctx.Query("archive") == "true")
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"deleted": ctx.Param("id"), "archive": location})
}
